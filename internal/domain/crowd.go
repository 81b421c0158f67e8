package domain

import "time"

type Destination struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	City     string   `json:"city"`
	Country  string   `json:"country"`
	Coords   Coords   `json:"coords"`
	Capacity int      `json:"capacity"`
	Outdoor  bool     `json:"outdoor"`
	Rating   *float64 `json:"rating,omitempty"` // 0..5
}

type SensorReading struct {
	DestinationID string    `json:"destination_id" db:"destination_id"`
	Count         int       `json:"count" db:"count" validate:"min=0"`
	RecordedAt    time.Time `json:"recorded_at" db:"recorded_at"`
}

type PopularitySample struct {
	DestinationID string    `json:"destination_id" db:"destination_id"`
	Hour          int       `json:"hour" db:"hour"`
	Score         float64   `json:"score" db:"score"`
	FetchedAt     time.Time `json:"fetched_at" db:"fetched_at"`
}

type WeatherCondition string

const (
	WeatherClear   WeatherCondition = "clear"
	WeatherClouds  WeatherCondition = "clouds"
	WeatherFog     WeatherCondition = "fog"
	WeatherRain    WeatherCondition = "rain"
	WeatherSnow    WeatherCondition = "snow"
	WeatherStorm   WeatherCondition = "storm"
	WeatherUnknown WeatherCondition = "unknown"
)

type WeatherReading struct {
	DestinationID string           `json:"destination_id" db:"destination_id"`
	Condition     WeatherCondition `json:"condition" db:"cond"`
	TempC         float64          `json:"temp_c" db:"temp_c"`
	ObservedAt    time.Time        `json:"observed_at" db:"observed_at"`
}

type Event struct {
	ID                 string    `json:"id" db:"id"`
	DestinationID      string    `json:"destination_id" db:"destination_id"`
	Name               string    `json:"name" db:"name" validate:"required,max=200"`
	StartsAt           time.Time `json:"starts_at" db:"starts_at" validate:"required"`
	EndsAt             time.Time `json:"ends_at" db:"ends_at" validate:"required,gtfield=StartsAt"`
	ExpectedAttendance int       `json:"expected_attendance" db:"expected_attendance" validate:"min=0"`
}

type CrowdLevel string

const (
	CrowdLow      CrowdLevel = "low"
	CrowdModerate CrowdLevel = "moderate"
	CrowdHigh     CrowdLevel = "high"
	CrowdVeryHigh CrowdLevel = "very_high"
)

// CrowdComponents are the per-signal scores (0..100) that went into an index.
// A nil component was unavailable.
type CrowdComponents struct {
	Sensor     *float64 `json:"sensor,omitempty"`
	Popularity *float64 `json:"popularity,omitempty"`
	Weather    *float64 `json:"weather,omitempty"`
	Events     *float64 `json:"events,omitempty"`
}

type CrowdIndex struct {
	DestinationID string          `json:"destination_id"`
	Value         float64         `json:"value"`
	Level         CrowdLevel      `json:"level"`
	Components    CrowdComponents `json:"components"`
	ComputedAt    time.Time       `json:"computed_at"`
}

// CrowdSignals is everything known about a destination at a point in time.
type CrowdSignals struct {
	Destination Destination
	Sensor      *SensorReading
	Popularity  []PopularitySample
	Weather     *WeatherReading
	Events      []Event
}

type HourForecast struct {
	Hour  int        `json:"hour"`
	Value float64    `json:"value"`
	Level CrowdLevel `json:"level"`
}

type DestinationRecommendation struct {
	Destination Destination `json:"destination"`
	Crowd       float64     `json:"crowd"`
	Score       float64     `json:"score"`
}
