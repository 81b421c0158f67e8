package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"croffers/internal/domain"
)

type PaymentService struct {
	payments domain.PaymentRepository
	bookings *BookingService
	gateway  domain.PaymentGateway
	pub      domain.EventPublisher
	now      func() time.Time
}

func NewPaymentService(p domain.PaymentRepository, b *BookingService, g domain.PaymentGateway, pub domain.EventPublisher) *PaymentService {
	s := &PaymentService{
		payments: p,
		bookings: b,
		gateway:  g,
		pub:      pub,
		now:      func() time.Time { return time.Now().UTC() },
	}
	b.SetRefunder(s)
	return s
}

// Checkout opens a payment intent for a pending booking. Calling it again
// returns the intent already on file.
func (s *PaymentService) Checkout(ctx context.Context, touristID, bookingID string) (domain.Payment, error) {
	b, err := s.bookings.Get(ctx, touristID, bookingID)
	if err != nil {
		return domain.Payment{}, err
	}
	if b.TouristID != touristID {
		return domain.Payment{}, domain.ErrForbidden
	}
	if b.Status != domain.BookingPending {
		return domain.Payment{}, domain.ErrBookingNotPending
	}
	if s.now().After(b.ExpiresAt) {
		return domain.Payment{}, domain.ErrBookingExpired
	}

	existing, err := s.payments.GetPaymentByBooking(ctx, b.ID)
	switch {
	case err == nil && existing.Status == domain.PaymentRequiresPayment:
		return existing, nil
	case err == nil && existing.Status == domain.PaymentFailed:
		return s.retry(ctx, b, existing)
	case err == nil:
		return domain.Payment{}, fmt.Errorf("%w: payment is %s", domain.ErrConflict, existing.Status)
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Payment{}, fmt.Errorf("lookup payment: %w", err)
	}

	intent, err := s.gateway.CreateIntent(ctx, intentKey(b.ID, 1), b.Total, b.Currency)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("%w: %v", domain.ErrPaymentFailed, err)
	}
	now := s.now()
	p := domain.Payment{
		ID:           uuid.NewString(),
		BookingID:    b.ID,
		Provider:     s.gateway.Name(),
		ProviderRef:  intent.Ref,
		ClientSecret: intent.ClientSecret,
		Amount:       b.Total,
		Currency:     b.Currency,
		Status:       domain.PaymentRequiresPayment,
		Attempt:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.payments.CreatePayment(ctx, p); err != nil {
		return domain.Payment{}, fmt.Errorf("create payment: %w", err)
	}
	log.Info().Str("payment_id", p.ID).Str("booking_id", b.ID).Str("ref", p.ProviderRef).Msg("checkout opened")
	return p, nil
}

// retry moves a declined payment onto a fresh intent. The provider would
// replay the declined intent for a reused idempotency key.
func (s *PaymentService) retry(ctx context.Context, b domain.Booking, p domain.Payment) (domain.Payment, error) {
	attempt := p.Attempt + 1
	intent, err := s.gateway.CreateIntent(ctx, intentKey(b.ID, attempt), b.Total, b.Currency)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("%w: %v", domain.ErrPaymentFailed, err)
	}
	p.ProviderRef = intent.Ref
	p.ClientSecret = intent.ClientSecret
	p.Status = domain.PaymentRequiresPayment
	p.Attempt = attempt
	p.UpdatedAt = s.now()
	if err := s.payments.ReopenPayment(ctx, p); err != nil {
		return domain.Payment{}, fmt.Errorf("reopen payment: %w", err)
	}
	log.Info().Str("payment_id", p.ID).Str("booking_id", b.ID).Int("attempt", attempt).Msg("checkout reopened")
	return p, nil
}

// intentKey keeps the first attempt on the bare booking key.
func intentKey(bookingID string, attempt int) string {
	if attempt <= 1 {
		return "booking-" + bookingID
	}
	return fmt.Sprintf("booking-%s-%d", bookingID, attempt)
}

// Sync pulls the intent state from the gateway and applies it locally.
func (s *PaymentService) Sync(ctx context.Context, paymentID string) (domain.Payment, error) {
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if p.Status != domain.PaymentRequiresPayment {
		return p, nil
	}
	intent, err := s.gateway.GetIntent(ctx, p.ProviderRef)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("get intent: %w", err)
	}

	switch intent.Status {
	case "succeeded":
		if _, err := s.bookings.Confirm(ctx, p.BookingID); err != nil {
			// money captured for a booking that can no longer be honoured
			if errors.Is(err, domain.ErrBookingExpired) || errors.Is(err, domain.ErrBookingNotPending) {
				if rerr := s.gateway.Refund(ctx, p.ProviderRef); rerr != nil {
					log.Error().Err(rerr).Str("payment_id", p.ID).Msg("refund after late capture failed")
					return domain.Payment{}, fmt.Errorf("refund late capture: %w", rerr)
				}
				if err := s.setStatus(ctx, &p, domain.PaymentRefunded); err != nil {
					return domain.Payment{}, err
				}
				publish(ctx, s.pub, domain.DomainEvent{Type: domain.EventPaymentRefunded, AggregateID: p.ID, Payload: p})
			}
			return domain.Payment{}, err
		}
		if err := s.setStatus(ctx, &p, domain.PaymentSucceeded); err != nil {
			return domain.Payment{}, err
		}
		publish(ctx, s.pub, domain.DomainEvent{Type: domain.EventPaymentSucceeded, AggregateID: p.ID, Payload: p})
	case "failed", "canceled":
		if err := s.setStatus(ctx, &p, domain.PaymentFailed); err != nil {
			return domain.Payment{}, err
		}
		return p, domain.ErrPaymentFailed
	}
	return p, nil
}

// RefundForBooking refunds the succeeded payment of a booking, if any.
func (s *PaymentService) RefundForBooking(ctx context.Context, bookingID string) error {
	p, err := s.payments.GetPaymentByBooking(ctx, bookingID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.Status != domain.PaymentSucceeded {
		return nil
	}
	if err := s.gateway.Refund(ctx, p.ProviderRef); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPaymentFailed, err)
	}
	if err := s.setStatus(ctx, &p, domain.PaymentRefunded); err != nil {
		return err
	}
	log.Info().Str("payment_id", p.ID).Str("booking_id", bookingID).Msg("payment refunded")
	publish(ctx, s.pub, domain.DomainEvent{Type: domain.EventPaymentRefunded, AggregateID: p.ID, Payload: p})
	return nil
}

func (s *PaymentService) Get(ctx context.Context, touristID, paymentID string) (domain.Payment, error) {
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	if _, err := s.bookings.Get(ctx, touristID, p.BookingID); err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

func (s *PaymentService) setStatus(ctx context.Context, p *domain.Payment, st domain.PaymentStatus) error {
	if err := s.payments.UpdatePaymentStatus(ctx, p.ID, st); err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	p.Status = st
	p.UpdatedAt = s.now()
	return nil
}
