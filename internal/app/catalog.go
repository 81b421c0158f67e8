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
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

type CatalogService struct {
	repo     domain.ListingRepository
	users    domain.UserRepository
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewCatalogService(r domain.ListingRepository, u domain.UserRepository, c domain.Cache, ttl time.Duration) *CatalogService {
	return &CatalogService{repo: r, users: u, cache: c, cacheTTL: ttl, now: func() time.Time { return time.Now().UTC() }}
}

func listingKey(id string) string { return "listing:" + id }

func checkListingInput(in domain.ListingInput) error {
	if err := validateStruct(in); err != nil {
		return err
	}
	if !in.Price.IsPositive() {
		return invalid("price must be positive")
	}
	if (in.Lat == nil) != (in.Lon == nil) {
		return invalid("lat and lon must be given together")
	}
	if in.Kind == domain.KindAccommodation && in.Lat == nil {
		return invalid("accommodation needs coordinates")
	}
	return nil
}

func applyInput(l *domain.Listing, in domain.ListingInput) {
	l.Kind = in.Kind
	l.Title = strings.TrimSpace(in.Title)
	l.Description = in.Description
	l.City = strings.TrimSpace(in.City)
	l.Country = strings.ToUpper(in.Country)
	l.Coords = nil
	if in.Lat != nil && in.Lon != nil {
		l.Coords = &domain.Coords{Lat: *in.Lat, Lon: *in.Lon}
	}
	l.Price = in.Price.Round(2)
	l.Currency = strings.ToUpper(in.Currency)
	l.Capacity = in.Capacity
	l.Amenities = in.Amenities
	l.Images = in.Images
}

func (s *CatalogService) Create(ctx context.Context, supplierID string, in domain.ListingInput) (domain.Listing, error) {
	if _, err := requireRole(ctx, s.users, supplierID, domain.RoleSupplier, domain.RoleAdmin); err != nil {
		return domain.Listing{}, err
	}
	if err := checkListingInput(in); err != nil {
		return domain.Listing{}, err
	}
	now := s.now()
	l := domain.Listing{
		ID:         uuid.NewString(),
		SupplierID: supplierID,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	applyInput(&l, in)
	if err := s.repo.CreateListing(ctx, l); err != nil {
		return domain.Listing{}, fmt.Errorf("create listing: %w", err)
	}
	log.Info().Str("listing_id", l.ID).Str("supplier_id", supplierID).Str("kind", string(l.Kind)).Msg("listing created")
	return l, nil
}

// owned loads a listing and checks supplierID owns it.
func (s *CatalogService) owned(ctx context.Context, supplierID, id string) (domain.Listing, error) {
	l, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if l.SupplierID != supplierID {
		return domain.Listing{}, fmt.Errorf("%w: listing belongs to another supplier", domain.ErrForbidden)
	}
	return l, nil
}

func (s *CatalogService) Update(ctx context.Context, supplierID, id string, in domain.ListingInput) (domain.Listing, error) {
	if err := checkListingInput(in); err != nil {
		return domain.Listing{}, err
	}
	l, err := s.owned(ctx, supplierID, id)
	if err != nil {
		return domain.Listing{}, err
	}
	applyInput(&l, in)
	l.UpdatedAt = s.now()
	if err := s.repo.UpdateListing(ctx, l); err != nil {
		return domain.Listing{}, fmt.Errorf("update listing: %w", err)
	}
	s.invalidate(ctx, id)
	return l, nil
}

func (s *CatalogService) Deactivate(ctx context.Context, supplierID, id string) error {
	l, err := s.owned(ctx, supplierID, id)
	if err != nil {
		return err
	}
	if !l.Active {
		return nil
	}
	l.Active = false
	l.UpdatedAt = s.now()
	if err := s.repo.UpdateListing(ctx, l); err != nil {
		return fmt.Errorf("deactivate listing: %w", err)
	}
	s.invalidate(ctx, id)
	log.Info().Str("listing_id", id).Msg("listing deactivated")
	return nil
}

// Get is read-through: redis first, then the repository.
func (s *CatalogService) Get(ctx context.Context, id string) (domain.Listing, error) {
	key := listingKey(id)
	var l domain.Listing
	if ok, _ := s.cache.Get(ctx, key, &l); ok {
		return l, nil
	}
	l, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	_ = s.cache.Set(ctx, key, l, s.cacheTTL)
	return l, nil
}

func (s *CatalogService) Search(ctx context.Context, q domain.ListingQuery) (domain.ListingsPage, error) {
	if q.Limit == 0 {
		q.Limit = defaultSearchLimit
	}
	if q.Limit < 1 || q.Limit > maxSearchLimit {
		return domain.ListingsPage{}, invalid("limit must be between 1 and %d", maxSearchLimit)
	}
	if q.Offset < 0 {
		return domain.ListingsPage{}, invalid("offset must not be negative")
	}
	if q.Kind != nil && !q.Kind.Valid() {
		return domain.ListingsPage{}, invalid("unknown kind %q", *q.Kind)
	}
	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		return domain.ListingsPage{}, invalid("min_price greater than max_price")
	}
	if (q.From == nil) != (q.To == nil) {
		return domain.ListingsPage{}, invalid("from and to must be given together")
	}
	if q.From != nil && !q.To.After(*q.From) {
		return domain.ListingsPage{}, invalid("to must be after from")
	}
	switch q.Sort {
	case "":
		q.Sort = domain.SortNewest
	case domain.SortPriceAsc, domain.SortPriceDesc, domain.SortRating, domain.SortNewest:
	default:
		return domain.ListingsPage{}, invalid("unknown sort %q", q.Sort)
	}
	if q.Guests < 0 {
		return domain.ListingsPage{}, invalid("guests must not be negative")
	}

	items, err := s.repo.SearchListings(ctx, q)
	if err != nil {
		return domain.ListingsPage{}, fmt.Errorf("search listings: %w", err)
	}
	if items == nil {
		items = []domain.Listing{}
	}
	return domain.ListingsPage{Items: items, Limit: q.Limit, Offset: q.Offset}, nil
}

func (s *CatalogService) ListBySupplier(ctx context.Context, supplierID string) ([]domain.Listing, error) {
	return s.repo.ListBySupplier(ctx, supplierID)
}

func (s *CatalogService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Del(ctx, listingKey(id)); err != nil {
		log.Warn().Err(err).Str("listing_id", id).Msg("listing cache invalidation failed")
	}
}
