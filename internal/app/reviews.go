package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"croffers/internal/domain"
)

const (
	defaultReviewLimit = 50
	maxReviewLimit     = 200
)

type ReviewService struct {
	reviews  domain.ReviewRepository
	bookings domain.BookingRepository
	listings domain.ListingRepository
	cache    domain.Cache
	cacheTTL time.Duration
	pub      domain.EventPublisher
	now      func() time.Time
}

func NewReviewService(r domain.ReviewRepository, b domain.BookingRepository, l domain.ListingRepository, c domain.Cache, ttl time.Duration, pub domain.EventPublisher) *ReviewService {
	return &ReviewService{
		reviews:  r,
		bookings: b,
		listings: l,
		cache:    c,
		cacheTTL: ttl,
		pub:      pub,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReviewService) WithClock(now func() time.Time) *ReviewService {
	s.now = now
	return s
}

// reviewsKey only exists for the first page; later pages go to MySQL.
// Bumping the listing's version orphans every cached limit at once.
func reviewsKey(listingID, version string, limit int) string {
	return fmt.Sprintf("reviews:%s:v%s:%d", listingID, version, limit)
}

func reviewsVersionKey(listingID string) string { return "reviews:" + listingID + ":ver" }

func (s *ReviewService) version(ctx context.Context, listingID string) string {
	var v string
	if ok, _ := s.cache.Get(ctx, reviewsVersionKey(listingID), &v); ok && v != "" {
		return v
	}
	return "0"
}

func (s *ReviewService) Create(ctx context.Context, touristID string, in domain.ReviewInput) (domain.Review, error) {
	if err := validateStruct(in); err != nil {
		return domain.Review{}, err
	}
	b, err := s.bookings.GetBooking(ctx, in.BookingID)
	if err != nil {
		return domain.Review{}, err
	}
	if b.TouristID != touristID {
		return domain.Review{}, fmt.Errorf("%w: booking belongs to another tourist", domain.ErrForbidden)
	}
	now := s.now()
	stayOver := !b.EndDate.After(now)
	if b.Status != domain.BookingCompleted && !(b.Status == domain.BookingConfirmed && stayOver) {
		return domain.Review{}, domain.ErrReviewNotAllowed
	}

	r := domain.Review{
		ID:        uuid.NewString(),
		ListingID: b.ListingID,
		BookingID: b.ID,
		TouristID: touristID,
		Rating:    in.Rating,
		Title:     trimmed(in.Title),
		Text:      trimmed(in.Text),
		CreatedAt: now,
	}
	if err := s.reviews.CreateReview(ctx, r); err != nil {
		return domain.Review{}, err
	}
	if err := s.listings.RecalcRating(ctx, b.ListingID); err != nil {
		return domain.Review{}, fmt.Errorf("recalc rating: %w", err)
	}
	s.invalidate(ctx, b.ListingID)

	log.Info().Str("review_id", r.ID).Str("listing_id", r.ListingID).Int("rating", r.Rating).Msg("review created")
	publish(ctx, s.pub, domain.DomainEvent{Type: domain.EventReviewCreated, AggregateID: r.ID, Payload: r})
	return r, nil
}

// List returns reviews newest first. The first page is cached.
func (s *ReviewService) List(ctx context.Context, listingID string, pg domain.PageQuery) (domain.ReviewsPage, error) {
	if pg.Limit == 0 {
		pg.Limit = defaultReviewLimit
	}
	if pg.Limit < 1 || pg.Limit > maxReviewLimit {
		return domain.ReviewsPage{}, invalid("limit must be between 1 and %d", maxReviewLimit)
	}
	if pg.Cursor != nil {
		if _, _, err := domain.DecodeCursor(*pg.Cursor); err != nil {
			return domain.ReviewsPage{}, err
		}
	}
	if _, err := s.listings.GetListing(ctx, listingID); err != nil {
		return domain.ReviewsPage{}, err
	}

	first := pg.Cursor == nil
	var key string
	if first {
		key = reviewsKey(listingID, s.version(ctx, listingID), pg.Limit)
		var page domain.ReviewsPage
		if ok, _ := s.cache.Get(ctx, key, &page); ok {
			return page, nil
		}
	}

	page, err := s.reviews.ListReviews(ctx, listingID, pg)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	if page.Items == nil {
		page.Items = []domain.Review{}
	}
	if first {
		_ = s.cache.Set(ctx, key, page, s.cacheTTL)
	}
	return page, nil
}

// invalidate drops the cached listing and moves review pages to a new
// version. The version shares the page TTL, so it outlives every page
// cached under the one it replaces.
func (s *ReviewService) invalidate(ctx context.Context, listingID string) {
	if err := s.cache.Del(ctx, listingKey(listingID)); err != nil {
		log.Warn().Err(err).Str("listing_id", listingID).Msg("listing cache invalidation failed")
	}
	if err := s.cache.Set(ctx, reviewsVersionKey(listingID), uuid.NewString(), s.cacheTTL); err != nil {
		log.Warn().Err(err).Str("listing_id", listingID).Msg("review cache invalidation failed")
	}
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	t := strings.TrimSpace(*p)
	if t == "" {
		return nil
	}
	return &t
}
