package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "croffers/internal/adapters/http_server"
	"croffers/internal/adapters/observability"
	"croffers/internal/adapters/payments"
	redisad "croffers/internal/adapters/redis"
	"croffers/internal/app"
	"croffers/internal/scheduler"
	"croffers/internal/shared"
	mysqlrepo "croffers/internal/storage/mysql"
)

func main() {
	cfg := shared.MustLoad()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Client().Close()
	events := redisad.NewStreamPublisher(cache.Client(), cfg.EventsStream)

	gateway, err := payments.New(cfg.PaymentBase, cfg.PaymentKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize payment gateway")
	}

	users := app.NewUserService(repo)
	catalog := app.NewCatalogService(repo, repo, cache, cfg.CacheTTL)
	bookings := app.NewBookingService(repo, repo, repo, events, cfg.BookingTTL)
	pays := app.NewPaymentService(repo, bookings, gateway, events)
	reviews := app.NewReviewService(repo, repo, repo, cache, cfg.CacheTTL, events)
	crowd := app.NewCrowdService(repo, cache, cfg.CacheTTL)
	recs := app.NewRecommendationService(crowd)
	journeys := app.NewJourneyService(repo, repo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go scheduler.New(bookings, cfg.ExpirySweepInterval, log.Logger).Start(ctx)

	// http
	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Users:    users,
		Catalog:  catalog,
		Bookings: bookings,
		Payments: pays,
		Reviews:  reviews,
		Crowd:    crowd,
		Recs:     recs,
		Journeys: journeys,
		Ready:    repo.Ping,
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
