package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"croffers/internal/adapters/observability"
	"croffers/internal/domain"
)

// Refunder returns money for a confirmed booking being cancelled.
type Refunder interface {
	RefundForBooking(ctx context.Context, bookingID string) error
}

type BookingService struct {
	bookings domain.BookingRepository
	listings domain.ListingRepository
	users    domain.UserRepository
	pub      domain.EventPublisher
	refunder Refunder
	ttl      time.Duration
	now      func() time.Time
}

func NewBookingService(b domain.BookingRepository, l domain.ListingRepository, u domain.UserRepository, pub domain.EventPublisher, ttl time.Duration) *BookingService {
	return &BookingService{
		bookings: b,
		listings: l,
		users:    u,
		pub:      pub,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source; used by tests and the scheduler.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// SetRefunder wires the payment side after both services exist.
func (s *BookingService) SetRefunder(r Refunder) { s.refunder = r }

// Quote prices a stay or a seat booking without reserving anything.
func (s *BookingService) Quote(ctx context.Context, listingID string, start, end time.Time, quantity int) (domain.Quote, error) {
	l, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return domain.Quote{}, err
	}
	return quote(l, start, end, quantity)
}

func quote(l domain.Listing, start, end time.Time, quantity int) (domain.Quote, error) {
	if quantity < 1 {
		return domain.Quote{}, invalid("quantity must be at least 1")
	}
	q := domain.Quote{
		ListingID: l.ID,
		StartDate: day(start),
		Quantity:  quantity,
		UnitPrice: l.Price,
		Currency:  l.Currency,
	}
	qty := decimal.NewFromInt(int64(quantity))
	if l.Kind == domain.KindAccommodation {
		q.EndDate = day(end)
		nights := int(q.EndDate.Sub(q.StartDate).Hours() / 24)
		if nights < 1 {
			return domain.Quote{}, invalid("end date must be after start date")
		}
		q.Nights = nights
		q.Total = l.Price.Mul(qty).Mul(decimal.NewFromInt(int64(nights))).Round(2)
		return q, nil
	}
	q.EndDate = q.StartDate.AddDate(0, 0, 1)
	q.Total = l.Price.Mul(qty).Round(2)
	return q, nil
}

func (s *BookingService) Create(ctx context.Context, touristID string, in domain.BookingInput) (domain.Booking, error) {
	if _, err := requireRole(ctx, s.users, touristID, domain.RoleTourist); err != nil {
		return domain.Booking{}, err
	}
	if err := validateStruct(in); err != nil {
		return domain.Booking{}, err
	}
	now := s.now()
	if day(in.StartDate).Before(day(now)) {
		return domain.Booking{}, invalid("start date is in the past")
	}

	l, err := s.listings.GetListing(ctx, in.ListingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if !l.Active {
		return domain.Booking{}, fmt.Errorf("%w: listing is not active", domain.ErrUnavailable)
	}
	if l.Kind != domain.KindAccommodation && in.Quantity < in.Guests {
		return domain.Booking{}, invalid("each guest needs a seat")
	}
	if in.Quantity > l.Capacity {
		return domain.Booking{}, domain.ErrUnavailable
	}
	q, err := quote(l, in.StartDate, in.EndDate, in.Quantity)
	if err != nil {
		return domain.Booking{}, err
	}

	b := domain.Booking{
		ID:        uuid.NewString(),
		ListingID: l.ID,
		TouristID: touristID,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		Quantity:  in.Quantity,
		Guests:    in.Guests,
		Total:     q.Total,
		Currency:  q.Currency,
		Status:    domain.BookingPending,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.bookings.CreateBooking(ctx, b, l.Capacity); err != nil {
		return domain.Booking{}, fmt.Errorf("create booking: %w", err)
	}

	observability.ObserveBooking(string(b.Status))
	log.Info().
		Str("booking_id", b.ID).
		Str("listing_id", b.ListingID).
		Str("tourist_id", touristID).
		Str("total", b.Total.StringFixed(2)).
		Msg("booking created")
	publish(ctx, s.pub, domain.DomainEvent{Type: domain.EventBookingCreated, AggregateID: b.ID, Payload: b})
	return b, nil
}

// Confirm is called by the payment flow once money is captured.
func (s *BookingService) Confirm(ctx context.Context, bookingID string) (domain.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if b.Status == domain.BookingConfirmed {
		return b, nil
	}
	if b.Status != domain.BookingPending {
		return domain.Booking{}, domain.ErrBookingNotPending
	}
	if s.now().After(b.ExpiresAt) {
		return domain.Booking{}, domain.ErrBookingExpired
	}
	if err := s.bookings.TransitionBooking(ctx, b.ID, []domain.BookingStatus{domain.BookingPending}, domain.BookingConfirmed); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.Booking{}, domain.ErrBookingNotPending
		}
		return domain.Booking{}, fmt.Errorf("confirm booking: %w", err)
	}
	b.Status = domain.BookingConfirmed
	b.UpdatedAt = s.now()

	observability.ObserveBooking(string(b.Status))
	log.Info().Str("booking_id", b.ID).Msg("booking confirmed")
	publish(ctx, s.pub, domain.DomainEvent{Type: domain.EventBookingConfirmed, AggregateID: b.ID, Payload: b})
	return b, nil
}

// cancelAttempts bounds re-reads when the booking changes state between
// the read and the conditional update.
const cancelAttempts = 3

// Cancel may be issued by the tourist, the listing's supplier or an admin.
// The update only applies to the status the refund decision was made on.
func (s *BookingService) Cancel(ctx context.Context, actorID, bookingID string) (domain.Booking, error) {
	for attempt := 1; ; attempt++ {
		b, err := s.Get(ctx, actorID, bookingID)
		if err != nil {
			return domain.Booking{}, err
		}
		if b.Status != domain.BookingPending && b.Status != domain.BookingConfirmed {
			return domain.Booking{}, fmt.Errorf("%w: booking is %s", domain.ErrConflict, b.Status)
		}
		if b.Status == domain.BookingConfirmed && s.refunder != nil {
			if err := s.refunder.RefundForBooking(ctx, b.ID); err != nil {
				return domain.Booking{}, fmt.Errorf("refund: %w", err)
			}
		}
		err = s.bookings.TransitionBooking(ctx, b.ID, []domain.BookingStatus{b.Status}, domain.BookingCancelled)
		if errors.Is(err, domain.ErrConflict) && attempt < cancelAttempts {
			log.Debug().Str("booking_id", b.ID).Str("seen", string(b.Status)).Msg("booking changed during cancel, retrying")
			continue
		}
		if err != nil {
			return domain.Booking{}, fmt.Errorf("cancel booking: %w", err)
		}
		b.Status = domain.BookingCancelled
		b.UpdatedAt = s.now()

		observability.ObserveBooking(string(b.Status))
		log.Info().Str("booking_id", b.ID).Str("actor_id", actorID).Msg("booking cancelled")
		publish(ctx, s.pub, domain.DomainEvent{Type: domain.EventBookingCancelled, AggregateID: b.ID, Payload: b})
		return b, nil
	}
}

// ExpirePending releases capacity held by unpaid bookings past their TTL.
func (s *BookingService) ExpirePending(ctx context.Context) ([]domain.Booking, error) {
	expired, err := s.bookings.ExpirePending(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("expire pending: %w", err)
	}
	for _, b := range expired {
		observability.ObserveBooking(string(domain.BookingExpired))
		publish(ctx, s.pub, domain.DomainEvent{Type: domain.EventBookingExpired, AggregateID: b.ID, Payload: b})
	}
	if len(expired) > 0 {
		log.Info().Int("count", len(expired)).Msg("pending bookings expired")
	}
	return expired, nil
}

// CompleteFinished marks confirmed bookings whose stay ended as completed.
func (s *BookingService) CompleteFinished(ctx context.Context) ([]domain.Booking, error) {
	done, err := s.bookings.CompleteFinished(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("complete finished: %w", err)
	}
	for range done {
		observability.ObserveBooking(string(domain.BookingCompleted))
	}
	if len(done) > 0 {
		log.Info().Int("count", len(done)).Msg("bookings completed")
	}
	return done, nil
}

// Get returns the booking if actorID is its tourist, the listing's supplier or an admin.
func (s *BookingService) Get(ctx context.Context, actorID, bookingID string) (domain.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if b.TouristID == actorID {
		return b, nil
	}
	actor, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("%w: unknown user", domain.ErrForbidden)
	}
	if actor.Role == domain.RoleAdmin {
		return b, nil
	}
	l, err := s.listings.GetListing(ctx, b.ListingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if l.SupplierID != actorID {
		return domain.Booking{}, domain.ErrForbidden
	}
	return b, nil
}

func (s *BookingService) ListByTourist(ctx context.Context, touristID string) ([]domain.Booking, error) {
	return s.bookings.ListByTourist(ctx, touristID)
}

func (s *BookingService) ListByListing(ctx context.Context, supplierID, listingID string) ([]domain.Booking, error) {
	l, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.SupplierID != supplierID {
		return nil, domain.ErrForbidden
	}
	return s.bookings.ListByListing(ctx, listingID)
}
