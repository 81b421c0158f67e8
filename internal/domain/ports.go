package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type UserRepository interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

type ListingRepository interface {
	CreateListing(ctx context.Context, l Listing) error
	UpdateListing(ctx context.Context, l Listing) error
	GetListing(ctx context.Context, id string) (Listing, error)
	SearchListings(ctx context.Context, q ListingQuery) ([]Listing, error)
	ListBySupplier(ctx context.Context, supplierID string) ([]Listing, error)
	RecalcRating(ctx context.Context, listingID string) error
}

type BookingRepository interface {
	// CreateBooking inserts b if the listing still has capacity for the
	// booked range, otherwise returns ErrUnavailable.
	CreateBooking(ctx context.Context, b Booking, capacity int) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	// TransitionBooking moves a booking to `to` only if it is currently in one
	// of `from`. Returns ErrConflict when the guard does not hold.
	TransitionBooking(ctx context.Context, id string, from []BookingStatus, to BookingStatus) error
	ExpirePending(ctx context.Context, now time.Time) ([]Booking, error)
	CompleteFinished(ctx context.Context, now time.Time) ([]Booking, error)
	ListByTourist(ctx context.Context, touristID string) ([]Booking, error)
	ListByListing(ctx context.Context, listingID string) ([]Booking, error)
}

type PaymentRepository interface {
	CreatePayment(ctx context.Context, p Payment) error
	GetPayment(ctx context.Context, id string) (Payment, error)
	GetPaymentByBooking(ctx context.Context, bookingID string) (Payment, error)
	UpdatePaymentStatus(ctx context.Context, id string, st PaymentStatus) error
	// ReopenPayment swaps a failed payment onto a new intent. ErrConflict when
	// the stored payment is no longer failed.
	ReopenPayment(ctx context.Context, p Payment) error
}

type ReviewRepository interface {
	// CreateReview returns ErrAlreadyReviewed when the booking has a review.
	CreateReview(ctx context.Context, r Review) error
	ListReviews(ctx context.Context, listingID string, pg PageQuery) (ReviewsPage, error)
}

type CrowdRepository interface {
	ListDestinations(ctx context.Context, city string) ([]Destination, error)
	GetDestination(ctx context.Context, id string) (Destination, error)

	InsertSensorReading(ctx context.Context, r SensorReading) error
	LatestSensorReading(ctx context.Context, destinationID string) (*SensorReading, error)
	UpsertPopularity(ctx context.Context, samples []PopularitySample) error
	Popularity(ctx context.Context, destinationID string) ([]PopularitySample, error)
	UpsertWeather(ctx context.Context, w WeatherReading) error
	LatestWeather(ctx context.Context, destinationID string) (*WeatherReading, error)
	CreateEvent(ctx context.Context, e Event) error
	EventsBetween(ctx context.Context, destinationID string, from, to time.Time) ([]Event, error)

	SaveCrowdIndex(ctx context.Context, ci CrowdIndex) error
	CrowdHistory(ctx context.Context, destinationID string, since time.Time, limit int) ([]CrowdIndex, error)
	LogMiss(ctx context.Context, destinationID string, status int, reason string) error
}

type TransitRepository interface {
	GetAirport(ctx context.Context, code string) (Airport, error)
	Network(ctx context.Context) (TransitNetwork, error)
}

// SignalsClient fetches raw crowd signal payloads from the upstream feed.
type SignalsClient interface {
	GetPopularity(ctx context.Context, destinationID string) ([]map[string]any, error)
	GetWeather(ctx context.Context, destinationID string) (map[string]any, error)
}

type PaymentGateway interface {
	Name() string
	CreateIntent(ctx context.Context, idempotencyKey string, amount decimal.Decimal, currency string) (Intent, error)
	GetIntent(ctx context.Context, ref string) (Intent, error)
	Refund(ctx context.Context, ref string) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev DomainEvent) error
}
