package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"croffers/internal/domain"
)

type bookingSweeper interface {
	ExpirePending(ctx context.Context) ([]domain.Booking, error)
	CompleteFinished(ctx context.Context) ([]domain.Booking, error)
}

// Scheduler periodically expires unpaid bookings and completes finished ones.
type Scheduler struct {
	bookings bookingSweeper
	interval time.Duration
	log      zerolog.Logger
}

func New(bookings bookingSweeper, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{bookings: bookings, interval: interval, log: log}
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	expired, err := s.bookings.ExpirePending(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("expire pending bookings failed")
	} else if len(expired) > 0 {
		s.log.Info().Int("count", len(expired)).Msg("bookings expired")
	}

	completed, err := s.bookings.CompleteFinished(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("complete finished bookings failed")
		return
	}
	if len(completed) > 0 {
		s.log.Info().Int("count", len(completed)).Msg("bookings completed")
	}
}
