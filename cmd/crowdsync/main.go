package main

import (
	"context"
	"database/sql"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"croffers/internal/adapters/observability"
	redisad "croffers/internal/adapters/redis"
	"croffers/internal/adapters/signals"
	"croffers/internal/app"
	"croffers/internal/domain"
	"croffers/internal/shared"
	mysqlrepo "croffers/internal/storage/mysql"
)

func main() {
	cfg := shared.MustLoad()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())

	log.Info().
		Str("base", cfg.SignalsBase).
		Int("workers", cfg.CrowdWorkers).
		Dur("interval", cfg.CrowdRefreshInterval).
		Msg("crowdsync starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	client, err := signals.New(cfg.SignalsBase, cfg.SignalsKey, cfg.SignalsRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize signals client")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Client().Close()

	crowd := app.NewCrowdService(repo, cache, cfg.CacheTTL)
	ing := app.NewIngestionService(client, repo, crowd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run(ctx, repo, ing, cfg.CrowdWorkers)
	if cfg.CrowdRefreshInterval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.CrowdRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("crowdsync stopped")
			return
		case <-ticker.C:
			run(ctx, repo, ing, cfg.CrowdWorkers)
		}
	}
}

// run refreshes every destination once, at most `workers` at a time.
func run(ctx context.Context, repo *mysqlrepo.Repo, ing *app.IngestionService, workers int) {
	dests, err := repo.ListDestinations(ctx, "")
	if err != nil {
		log.Error().Err(err).Msg("list destinations failed")
		return
	}

	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	start := time.Now()

	for _, d := range dests {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("refresh interrupted")
			break
		}

		wg.Add(1)
		go func(d domain.Destination) {
			defer wg.Done()
			defer sem.Release(1)

			if err := ing.RefreshDestination(ctx, d); err != nil {
				log.Warn().Str("destination_id", d.ID).Err(err).Msg("refresh failed")
				return
			}
			log.Debug().Str("destination_id", d.ID).Msg("refresh ok")
		}(d)
	}

	wg.Wait()
	log.Info().Int("destinations", len(dests)).Dur("took", time.Since(start)).Msg("crowd refresh completed")
}
