package domain

import "time"

type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingExpired   EventType = "booking.expired"
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentRefunded  EventType = "payment.refunded"
	EventReviewCreated    EventType = "review.created"
)

// DomainEvent is published to downstream consumers (mail, analytics).
type DomainEvent struct {
	Type        EventType `json:"type"`
	AggregateID string    `json:"aggregate_id"`
	Payload     any       `json:"payload"`
	OccurredAt  time.Time `json:"occurred_at"`
}
