package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"croffers/internal/domain"
)

func TestBestTimes_QuietestFirst(t *testing.T) {
	store, _, crowd := newCrowdFixture()
	for _, s := range []domain.PopularitySample{
		{Hour: 5, Score: 0}, // before opening
		{Hour: 6, Score: 50},
		{Hour: 8, Score: 20},
		{Hour: 7, Score: 20},
		{Hour: 12, Score: 90},
	} {
		s.DestinationID = "d1"
		store.popularity["d1"] = append(store.popularity["d1"], s)
	}
	svc := NewRecommendationService(crowd)

	got, err := svc.BestTimes(context.Background(), "d1", at0, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{7, 8, 6}, []int{got[0].Hour, got[1].Hour, got[2].Hour})
	assert.Equal(t, domain.CrowdLow, got[0].Level)
}

func TestBestTimes_WeatherCoversEveryHour(t *testing.T) {
	store, _, crowd := newCrowdFixture()
	store.weather["d1"] = domain.WeatherReading{DestinationID: "d1", Condition: domain.WeatherRain, TempC: 18, ObservedAt: at0}
	svc := NewRecommendationService(crowd)

	got, err := svc.BestTimes(context.Background(), "d1", at0.AddDate(0, 0, 2), 17)
	require.NoError(t, err)
	require.Len(t, got, 17)
	assert.Equal(t, 6, got[0].Hour)
	assert.Equal(t, 30.0, got[0].Value)

	_, err = svc.BestTimes(context.Background(), "d1", at0, 18)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBestTimes_NoSignals(t *testing.T) {
	_, _, crowd := newCrowdFixture()
	_, err := NewRecommendationService(crowd).BestTimes(context.Background(), "d1", at0, 3)
	assert.ErrorIs(t, err, domain.ErrNoSignals)
}

func TestRecommendDestinations_Ranking(t *testing.T) {
	store, _, crowd := newCrowdFixture()
	d1 := store.dests["d1"]
	d1.Rating = pfloat(5)
	store.dests["d1"] = d1
	store.dests["d2"] = domain.Destination{ID: "d2", Name: "Marjan", City: "Split", Capacity: 500, Outdoor: true}
	store.dests["d3"] = domain.Destination{ID: "d3", Name: "Ban Jelacic", City: "Zagreb", Capacity: 500}
	store.sensors["d1"] = domain.SensorReading{DestinationID: "d1", Count: 200, RecordedAt: at0}

	got, err := NewRecommendationService(crowd).Destinations(context.Background(), "Split", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "d1", got[0].Destination.ID)
	assert.Equal(t, 20.0, got[0].Crowd)
	assert.Equal(t, 88.0, got[0].Score)

	assert.Equal(t, "d2", got[1].Destination.ID)
	assert.Equal(t, 50.0, got[1].Crowd)
	assert.Equal(t, 50.0, got[1].Score)
}

func TestRecommendDestinations_Validation(t *testing.T) {
	_, _, crowd := newCrowdFixture()
	svc := NewRecommendationService(crowd)

	_, err := svc.Destinations(context.Background(), "", at0, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Destinations(context.Background(), "Split", at0, 51)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
