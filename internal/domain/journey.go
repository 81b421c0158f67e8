package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Airport struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Coords Coords `json:"coords"`
}

type Port struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Coords Coords `json:"coords"`
}

type FerryRoute struct {
	ID         string          `json:"id"`
	FromPortID string          `json:"from_port_id"`
	ToPortID   string          `json:"to_port_id"`
	Departures []string        `json:"departures"` // "HH:MM", local schedule in UTC
	Duration   time.Duration   `json:"duration"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	Operator   string          `json:"operator"`
}

type LegKind string

const (
	LegTransfer LegKind = "transfer"
	LegFerry    LegKind = "ferry"
)

type Leg struct {
	Kind       LegKind         `json:"kind"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Departure  time.Time       `json:"departure"`
	Arrival    time.Time       `json:"arrival"`
	DistanceKm float64         `json:"distance_km"`
	Price      decimal.Decimal `json:"price"`
	Operator   string          `json:"operator,omitempty"`
}

type Itinerary struct {
	Legs          []Leg           `json:"legs"`
	TotalDuration time.Duration   `json:"total_duration"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Currency      string          `json:"currency"`
	ArriveAt      time.Time       `json:"arrive_at"`
}

// TransitNetwork is the static data the journey planner works on.
type TransitNetwork struct {
	Airports []Airport
	Ports    []Port
	Routes   []FerryRoute
}
