package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingExpired   BookingStatus = "expired"
	BookingCompleted BookingStatus = "completed"
)

// ActiveStatuses hold capacity on a listing.
var ActiveStatuses = []BookingStatus{BookingPending, BookingConfirmed}

type Booking struct {
	ID        string          `json:"id" db:"id"`
	ListingID string          `json:"listing_id" db:"listing_id"`
	TouristID string          `json:"tourist_id" db:"tourist_id"`
	StartDate time.Time       `json:"start_date" db:"start_date"`
	EndDate   time.Time       `json:"end_date" db:"end_date"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Guests    int             `json:"guests" db:"guests"`
	Total     decimal.Decimal `json:"total" db:"total"`
	Currency  string          `json:"currency" db:"currency"`
	Status    BookingStatus   `json:"status" db:"status"`
	ExpiresAt time.Time       `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

type BookingInput struct {
	ListingID string    `json:"listing_id" validate:"required,uuid"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=100"`
	Guests    int       `json:"guests" validate:"required,min=1,max=500"`
}

type Quote struct {
	ListingID string          `json:"listing_id"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	Nights    int             `json:"nights,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
}
