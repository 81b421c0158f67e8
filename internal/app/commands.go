package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"croffers/internal/domain"
)

type IngestionService struct {
	signals domain.SignalsClient
	repo    domain.CrowdRepository
	crowd   *CrowdService
	now     func() time.Time
}

func NewIngestionService(c domain.SignalsClient, r domain.CrowdRepository, crowd *CrowdService) *IngestionService {
	return &IngestionService{signals: c, repo: r, crowd: crowd, now: func() time.Time { return time.Now().UTC() }}
}

func (s *IngestionService) WithClock(now func() time.Time) *IngestionService {
	s.now = now
	return s
}

// missStatus classifies errors the feed reports for a destination it does
// not know or will not serve. Zero means the error is unexpected.
func missStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return 404
	case errors.Is(err, domain.ErrUnauthorized):
		return 401
	case errors.Is(err, domain.ErrForbidden):
		return 403
	}
	return 0
}

func (s *IngestionService) logMiss(ctx context.Context, destinationID string, status int, reason string) {
	if err := s.repo.LogMiss(ctx, destinationID, status, reason); err != nil {
		log.Warn().Err(err).Str("destination_id", destinationID).Str("reason", reason).Msg("record feed miss failed")
	}
}

// RefreshDestination pulls popularity and weather for d, stores them and
// recomputes the crowd index. Feed misses are logged, not returned.
func (s *IngestionService) RefreshDestination(ctx context.Context, d domain.Destination) error {
	fetched := s.now()

	// 1) Popularity: 24 hourly samples.
	raw, err := s.signals.GetPopularity(ctx, d.ID)
	if err != nil {
		st := missStatus(err)
		if st == 0 {
			return fmt.Errorf("popularity for %s: %w", d.ID, err)
		}
		s.logMiss(ctx, d.ID, st, "popularity")
	} else if samples := mapPopularity(d.ID, raw, fetched); len(samples) > 0 {
		if err := s.repo.UpsertPopularity(ctx, samples); err != nil {
			return fmt.Errorf("upsert popularity for %s: %w", d.ID, err)
		}
	} else {
		s.logMiss(ctx, d.ID, 422, "popularity:empty")
	}

	// 2) Weather: current conditions.
	payload, err := s.signals.GetWeather(ctx, d.ID)
	if err != nil {
		st := missStatus(err)
		if st == 0 {
			return fmt.Errorf("weather for %s: %w", d.ID, err)
		}
		s.logMiss(ctx, d.ID, st, "weather")
	} else if w, ok := mapWeather(d.ID, payload, fetched); ok {
		if err := s.repo.UpsertWeather(ctx, w); err != nil {
			return fmt.Errorf("upsert weather for %s: %w", d.ID, err)
		}
	} else {
		s.logMiss(ctx, d.ID, 422, "weather:unparsable")
	}

	// 3) Recompute so the cache never serves an index built from older inputs.
	ci, err := s.crowd.Recompute(ctx, d)
	if errors.Is(err, domain.ErrNoSignals) {
		s.crowd.invalidate(ctx, d.ID)
		log.Info().Str("destination_id", d.ID).Msg("no crowd signals after refresh")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Str("destination_id", d.ID).Float64("value", ci.Value).Msg("destination refreshed")
	return nil
}
