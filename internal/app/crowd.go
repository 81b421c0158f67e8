package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"croffers/internal/adapters/observability"
	"croffers/internal/domain"
)

const (
	weightSensor     = 0.40
	weightPopularity = 0.30
	weightEvents     = 0.20
	weightWeather    = 0.10

	sensorMaxAge   = 30 * time.Minute
	weatherMaxAge  = 3 * time.Hour
	eventLookahead = 2 * time.Hour

	extremeTempPenalty = 15.0
	coldBelowC         = 5.0
	hotAboveC          = 35.0
)

var weatherBase = map[domain.WeatherCondition]float64{
	domain.WeatherClear:   80,
	domain.WeatherClouds:  60,
	domain.WeatherFog:     40,
	domain.WeatherRain:    30,
	domain.WeatherSnow:    20,
	domain.WeatherStorm:   10,
	domain.WeatherUnknown: 50,
}

// CalculateCrowdIndex blends whatever signals are present into a 0..100
// index. Absent signals are skipped and the remaining weights rescaled.
func CalculateCrowdIndex(in domain.CrowdSignals, at time.Time) (domain.CrowdIndex, error) {
	at = at.UTC()
	var comp domain.CrowdComponents
	var sum, weights float64
	add := func(dst **float64, v, w float64) {
		v = clamp(v, 0, 100)
		*dst = &v
		sum += v * w
		weights += w
	}

	if v, ok := sensorScore(in, at); ok {
		add(&comp.Sensor, v, weightSensor)
	}
	if v, ok := popularityScore(in.Popularity, at.Hour()); ok {
		add(&comp.Popularity, v, weightPopularity)
	}
	if v, ok := eventsScore(in, at); ok {
		add(&comp.Events, v, weightEvents)
	}
	if v, ok := weatherScore(in, at); ok {
		add(&comp.Weather, v, weightWeather)
	}

	if weights == 0 {
		return domain.CrowdIndex{}, domain.ErrNoSignals
	}
	value := round1(clamp(sum/weights, 0, 100))
	return domain.CrowdIndex{
		DestinationID: in.Destination.ID,
		Value:         value,
		Level:         LevelFor(value),
		Components:    comp,
		ComputedAt:    at,
	}, nil
}

func LevelFor(v float64) domain.CrowdLevel {
	switch {
	case v < 25:
		return domain.CrowdLow
	case v < 50:
		return domain.CrowdModerate
	case v < 75:
		return domain.CrowdHigh
	default:
		return domain.CrowdVeryHigh
	}
}

func sensorScore(in domain.CrowdSignals, at time.Time) (float64, bool) {
	r := in.Sensor
	if r == nil || in.Destination.Capacity <= 0 {
		return 0, false
	}
	age := at.Sub(r.RecordedAt)
	if age < 0 || age > sensorMaxAge {
		return 0, false
	}
	return float64(r.Count) / float64(in.Destination.Capacity) * 100, true
}

func popularityScore(samples []domain.PopularitySample, hour int) (float64, bool) {
	for _, s := range samples {
		if s.Hour == hour {
			return s.Score, true
		}
	}
	return 0, false
}

func weatherScore(in domain.CrowdSignals, at time.Time) (float64, bool) {
	w := in.Weather
	if w == nil {
		return 0, false
	}
	age := at.Sub(w.ObservedAt)
	if age < 0 || age > weatherMaxAge {
		return 0, false
	}
	base, ok := weatherBase[w.Condition]
	if !ok {
		base = weatherBase[domain.WeatherUnknown]
	}
	if !in.Destination.Outdoor {
		return 100 - base, true
	}
	if w.TempC < coldBelowC || w.TempC > hotAboveC {
		base -= extremeTempPenalty
	}
	return base, true
}

func eventsScore(in domain.CrowdSignals, at time.Time) (float64, bool) {
	if in.Destination.Capacity <= 0 {
		return 0, false
	}
	horizon := at.Add(eventLookahead)
	attendance, relevant := 0, false
	for _, e := range in.Events {
		active := !e.StartsAt.After(at) && e.EndsAt.After(at)
		soon := e.StartsAt.After(at) && !e.StartsAt.After(horizon)
		if active || soon {
			attendance += e.ExpectedAttendance
			relevant = true
		}
	}
	if !relevant {
		return 0, false
	}
	return float64(attendance) / float64(in.Destination.Capacity) * 100, true
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

/********** service **********/

const (
	defaultHistoryLimit = 96
	maxHistoryLimit     = 1000
)

type CrowdService struct {
	repo     domain.CrowdRepository
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewCrowdService(r domain.CrowdRepository, c domain.Cache, ttl time.Duration) *CrowdService {
	return &CrowdService{repo: r, cache: c, cacheTTL: ttl, now: func() time.Time { return time.Now().UTC() }}
}

func (s *CrowdService) WithClock(now func() time.Time) *CrowdService {
	s.now = now
	return s
}

func crowdKey(id string) string { return "crowd:" + id }

// signals loads the stored inputs for a destination; sensor data is
// skipped when withSensor is false (forecasts).
func (s *CrowdService) signals(ctx context.Context, d domain.Destination, from, to time.Time, withSensor bool) (domain.CrowdSignals, error) {
	in := domain.CrowdSignals{Destination: d}
	var err error
	if withSensor {
		if in.Sensor, err = s.repo.LatestSensorReading(ctx, d.ID); err != nil {
			return in, fmt.Errorf("sensor: %w", err)
		}
	}
	if in.Popularity, err = s.repo.Popularity(ctx, d.ID); err != nil {
		return in, fmt.Errorf("popularity: %w", err)
	}
	if in.Weather, err = s.repo.LatestWeather(ctx, d.ID); err != nil {
		return in, fmt.Errorf("weather: %w", err)
	}
	if in.Events, err = s.repo.EventsBetween(ctx, d.ID, from, to); err != nil {
		return in, fmt.Errorf("events: %w", err)
	}
	return in, nil
}

// CurrentIndex serves from cache, otherwise computes, stores a snapshot and caches it.
func (s *CrowdService) CurrentIndex(ctx context.Context, destinationID string) (domain.CrowdIndex, error) {
	var ci domain.CrowdIndex
	if ok, _ := s.cache.Get(ctx, crowdKey(destinationID), &ci); ok {
		return ci, nil
	}
	d, err := s.repo.GetDestination(ctx, destinationID)
	if err != nil {
		return domain.CrowdIndex{}, err
	}
	return s.Recompute(ctx, d)
}

// Recompute ignores the cache and refreshes it.
func (s *CrowdService) Recompute(ctx context.Context, d domain.Destination) (domain.CrowdIndex, error) {
	now := s.now()
	in, err := s.signals(ctx, d, now.Add(-24*time.Hour), now.Add(eventLookahead), true)
	if err != nil {
		return domain.CrowdIndex{}, err
	}
	ci, err := CalculateCrowdIndex(in, now)
	if err != nil {
		return domain.CrowdIndex{}, err
	}
	if err := s.repo.SaveCrowdIndex(ctx, ci); err != nil {
		return domain.CrowdIndex{}, fmt.Errorf("save crowd index: %w", err)
	}
	_ = s.cache.Set(ctx, crowdKey(d.ID), ci, s.cacheTTL)

	observability.ObserveCrowd(d.ID, ci.Value)
	log.Debug().Str("destination_id", d.ID).Float64("value", ci.Value).Str("level", string(ci.Level)).Msg("crowd index computed")
	return ci, nil
}

// Forecast evaluates the index at each of hours without live sensor data.
func (s *CrowdService) Forecast(ctx context.Context, d domain.Destination, from, to time.Time, hours []time.Time) ([]domain.CrowdIndex, error) {
	in, err := s.signals(ctx, d, from, to, false)
	if err != nil {
		return nil, err
	}
	// the latest reading stands in as the outlook for every hour
	var w domain.WeatherReading
	if in.Weather != nil {
		w = *in.Weather
	}
	out := make([]domain.CrowdIndex, 0, len(hours))
	for _, h := range hours {
		if in.Weather != nil {
			w.ObservedAt = h
			in.Weather = &w
		}
		ci, err := CalculateCrowdIndex(in, h)
		if err != nil {
			continue
		}
		out = append(out, ci)
	}
	return out, nil
}

func (s *CrowdService) History(ctx context.Context, destinationID string, since time.Time, limit int) ([]domain.CrowdIndex, error) {
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	if limit < 1 || limit > maxHistoryLimit {
		return nil, invalid("limit must be between 1 and %d", maxHistoryLimit)
	}
	if since.IsZero() {
		since = s.now().Add(-24 * time.Hour)
	}
	if _, err := s.repo.GetDestination(ctx, destinationID); err != nil {
		return nil, err
	}
	items, err := s.repo.CrowdHistory(ctx, destinationID, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.CrowdIndex{}
	}
	return items, nil
}

func (s *CrowdService) RecordSensorReading(ctx context.Context, r domain.SensorReading) error {
	if r.Count < 0 {
		return invalid("count must not be negative")
	}
	if _, err := s.repo.GetDestination(ctx, r.DestinationID); err != nil {
		return err
	}
	if r.RecordedAt.IsZero() {
		r.RecordedAt = s.now()
	}
	if r.RecordedAt.After(s.now().Add(time.Minute)) {
		return invalid("recorded_at is in the future")
	}
	r.RecordedAt = r.RecordedAt.UTC()
	if err := s.repo.InsertSensorReading(ctx, r); err != nil {
		return fmt.Errorf("insert sensor reading: %w", err)
	}
	s.invalidate(ctx, r.DestinationID)
	return nil
}

func (s *CrowdService) CreateEvent(ctx context.Context, e domain.Event) (domain.Event, error) {
	if err := validateStruct(e); err != nil {
		return domain.Event{}, err
	}
	if _, err := s.repo.GetDestination(ctx, e.DestinationID); err != nil {
		return domain.Event{}, err
	}
	e.ID = uuid.NewString()
	e.StartsAt, e.EndsAt = e.StartsAt.UTC(), e.EndsAt.UTC()
	if err := s.repo.CreateEvent(ctx, e); err != nil {
		return domain.Event{}, fmt.Errorf("create event: %w", err)
	}
	s.invalidate(ctx, e.DestinationID)
	log.Info().Str("event_id", e.ID).Str("destination_id", e.DestinationID).Msg("event created")
	return e, nil
}

func (s *CrowdService) Destinations(ctx context.Context, city string) ([]domain.Destination, error) {
	return s.repo.ListDestinations(ctx, city)
}

func (s *CrowdService) Destination(ctx context.Context, id string) (domain.Destination, error) {
	return s.repo.GetDestination(ctx, id)
}

func (s *CrowdService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Del(ctx, crowdKey(id)); err != nil {
		log.Warn().Err(err).Str("destination_id", id).Msg("crowd cache invalidation failed")
	}
}
