package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"croffers/internal/domain"
)

const (
	firstVisitHour = 6
	lastVisitHour  = 22

	defaultBestTimes       = 3
	defaultRecommendations = 5
	maxRecommendations     = 50

	neutralScore = 50.0
	crowdWeight  = 0.6
	ratingWeight = 0.4

	recommendFanOut = 8
)

type RecommendationService struct {
	crowd *CrowdService
}

func NewRecommendationService(c *CrowdService) *RecommendationService {
	return &RecommendationService{crowd: c}
}

// BestTimes ranks the visiting hours of a day from least to most crowded.
func (s *RecommendationService) BestTimes(ctx context.Context, destinationID string, on time.Time, limit int) ([]domain.HourForecast, error) {
	if limit == 0 {
		limit = defaultBestTimes
	}
	if limit < 1 || limit > lastVisitHour-firstVisitHour+1 {
		return nil, invalid("limit must be between 1 and %d", lastVisitHour-firstVisitHour+1)
	}
	d, err := s.crowd.Destination(ctx, destinationID)
	if err != nil {
		return nil, err
	}

	start := day(on)
	hours := make([]time.Time, 0, lastVisitHour-firstVisitHour+1)
	for h := firstVisitHour; h <= lastVisitHour; h++ {
		hours = append(hours, start.Add(time.Duration(h)*time.Hour))
	}
	idx, err := s.crowd.Forecast(ctx, d, start, start.Add(24*time.Hour+eventLookahead), hours)
	if err != nil {
		return nil, err
	}
	if len(idx) == 0 {
		return nil, domain.ErrNoSignals
	}

	out := make([]domain.HourForecast, 0, len(idx))
	for _, ci := range idx {
		out = append(out, domain.HourForecast{Hour: ci.ComputedAt.Hour(), Value: ci.Value, Level: ci.Level})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value < out[j].Value
		}
		return out[i].Hour < out[j].Hour
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Destinations ranks a city's destinations by quietness and rating.
// A zero at means now.
func (s *RecommendationService) Destinations(ctx context.Context, city string, at time.Time, limit int) ([]domain.DestinationRecommendation, error) {
	if limit == 0 {
		limit = defaultRecommendations
	}
	if limit < 1 || limit > maxRecommendations {
		return nil, invalid("limit must be between 1 and %d", maxRecommendations)
	}
	if city == "" {
		return nil, invalid("city is required")
	}
	ds, err := s.crowd.Destinations(ctx, city)
	if err != nil {
		return nil, err
	}

	out := make([]domain.DestinationRecommendation, len(ds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recommendFanOut)
	for i, d := range ds {
		g.Go(func() error {
			crowd, err := s.crowdAt(gctx, d, at)
			if err != nil {
				return err
			}
			rating := neutralScore
			if d.Rating != nil {
				rating = clamp(*d.Rating/5*100, 0, 100)
			}
			out[i] = domain.DestinationRecommendation{
				Destination: d,
				Crowd:       crowd,
				Score:       round1(crowdWeight*(100-crowd) + ratingWeight*rating),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Destination.ID < out[j].Destination.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *RecommendationService) crowdAt(ctx context.Context, d domain.Destination, at time.Time) (float64, error) {
	if at.IsZero() {
		ci, err := s.crowd.CurrentIndex(ctx, d.ID)
		if errors.Is(err, domain.ErrNoSignals) {
			return neutralScore, nil
		}
		if err != nil {
			return 0, err
		}
		return ci.Value, nil
	}
	at = at.UTC()
	idx, err := s.crowd.Forecast(ctx, d, at.Add(-24*time.Hour), at.Add(eventLookahead), []time.Time{at})
	if err != nil {
		return 0, err
	}
	if len(idx) == 0 {
		return neutralScore, nil
	}
	return idx[0].Value, nil
}
