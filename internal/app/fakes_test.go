package app

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"croffers/internal/domain"
)

// ---------- small helpers ----------
func pstr(s string) *string     { return &s }
func pfloat(f float64) *float64 { return &f }

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

// ---------- in-memory cache ----------
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data[key] = b
	c.mu.Unlock()
	return nil
}

func (c *memCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// ---------- publisher ----------
type recPublisher struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func (p *recPublisher) Publish(_ context.Context, ev domain.DomainEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *recPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// ---------- store: one fake implementing every repository ----------
type memStore struct {
	mu       sync.Mutex
	users    map[string]domain.User
	listings map[string]domain.Listing
	bookings map[string]domain.Booking
	payments map[string]domain.Payment
	reviews  []domain.Review

	dests      map[string]domain.Destination
	sensors    map[string]domain.SensorReading
	popularity map[string][]domain.PopularitySample
	weather    map[string]domain.WeatherReading
	events     []domain.Event
	snapshots  []domain.CrowdIndex
	misses     []string
	missCodes  []int
	missErr    error

	airports map[string]domain.Airport
	network  domain.TransitNetwork
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[string]domain.User{},
		listings:   map[string]domain.Listing{},
		bookings:   map[string]domain.Booking{},
		payments:   map[string]domain.Payment{},
		dests:      map[string]domain.Destination{},
		sensors:    map[string]domain.SensorReading{},
		popularity: map[string][]domain.PopularitySample{},
		weather:    map[string]domain.WeatherReading{},
		airports:   map[string]domain.Airport{},
	}
}

func (m *memStore) CreateUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memStore) CreateListing(_ context.Context, l domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[l.ID] = l
	return nil
}

func (m *memStore) UpdateListing(_ context.Context, l domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[l.ID]; !ok {
		return domain.ErrNotFound
	}
	m.listings[l.ID] = l
	return nil
}

func (m *memStore) GetListing(_ context.Context, id string) (domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (m *memStore) SearchListings(_ context.Context, q domain.ListingQuery) ([]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Listing
	for _, l := range m.listings {
		if !l.Active {
			continue
		}
		if q.Kind != nil && l.Kind != *q.Kind {
			continue
		}
		if q.City != nil && l.City != *q.City {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out, nil
}

func (m *memStore) ListBySupplier(_ context.Context, supplierID string) ([]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Listing
	for _, l := range m.listings {
		if l.SupplierID == supplierID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memStore) RecalcRating(_ context.Context, listingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.listings[listingID]
	sum, n := 0, 0
	for _, r := range m.reviews {
		if r.ListingID == listingID {
			sum += r.Rating
			n++
		}
	}
	l.ReviewCount = n
	if n > 0 {
		avg := float64(sum) / float64(n)
		l.AvgRating = &avg
	}
	m.listings[listingID] = l
	return nil
}

func overlaps(a, b domain.Booking) bool {
	return a.StartDate.Before(b.EndDate) && b.StartDate.Before(a.EndDate)
}

func (m *memStore) CreateBooking(_ context.Context, b domain.Booking, capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	used := 0
	for _, o := range m.bookings {
		if o.ListingID != b.ListingID || !overlaps(o, b) {
			continue
		}
		lapsed := o.Status == domain.BookingPending && !o.ExpiresAt.After(b.CreatedAt)
		if (o.Status == domain.BookingPending || o.Status == domain.BookingConfirmed) && !lapsed {
			used += o.Quantity
		}
	}
	if used+b.Quantity > capacity {
		return domain.ErrUnavailable
	}
	m.bookings[b.ID] = b
	return nil
}

func (m *memStore) GetBooking(_ context.Context, id string) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

func (m *memStore) TransitionBooking(_ context.Context, id string, from []domain.BookingStatus, to domain.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return domain.ErrNotFound
	}
	for _, f := range from {
		if b.Status == f {
			b.Status = to
			m.bookings[id] = b
			return nil
		}
	}
	return domain.ErrConflict
}

func (m *memStore) sweep(match func(domain.Booking) bool, to domain.BookingStatus) []domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for id, b := range m.bookings {
		if match(b) {
			b.Status = to
			m.bookings[id] = b
			out = append(out, b)
		}
	}
	return out
}

func (m *memStore) ExpirePending(_ context.Context, now time.Time) ([]domain.Booking, error) {
	return m.sweep(func(b domain.Booking) bool {
		return b.Status == domain.BookingPending && b.ExpiresAt.Before(now)
	}, domain.BookingExpired), nil
}

func (m *memStore) CompleteFinished(_ context.Context, now time.Time) ([]domain.Booking, error) {
	return m.sweep(func(b domain.Booking) bool {
		return b.Status == domain.BookingConfirmed && !b.EndDate.After(now)
	}, domain.BookingCompleted), nil
}

func (m *memStore) ListByTourist(_ context.Context, touristID string) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for _, b := range m.bookings {
		if b.TouristID == touristID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) ListByListing(_ context.Context, listingID string) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for _, b := range m.bookings {
		if b.ListingID == listingID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) CreatePayment(_ context.Context, p domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
	return nil
}

func (m *memStore) GetPayment(_ context.Context, id string) (domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return domain.Payment{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memStore) GetPaymentByBooking(_ context.Context, bookingID string) (domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.BookingID == bookingID {
			return p, nil
		}
	}
	return domain.Payment{}, domain.ErrNotFound
}

func (m *memStore) UpdatePaymentStatus(_ context.Context, id string, st domain.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = st
	m.payments[id] = p
	return nil
}

func (m *memStore) ReopenPayment(_ context.Context, p domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.payments[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Status != domain.PaymentFailed {
		return domain.ErrConflict
	}
	m.payments[p.ID] = p
	return nil
}

func (m *memStore) CreateReview(_ context.Context, r domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.reviews {
		if o.BookingID == r.BookingID {
			return domain.ErrAlreadyReviewed
		}
	}
	m.reviews = append(m.reviews, r)
	return nil
}

func (m *memStore) ListReviews(_ context.Context, listingID string, pg domain.PageQuery) (domain.ReviewsPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.Review
	for _, r := range m.reviews {
		if r.ListingID == listingID {
			all = append(all, r)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if pg.Cursor != nil {
		at, id, err := domain.DecodeCursor(*pg.Cursor)
		if err != nil {
			return domain.ReviewsPage{}, err
		}
		var rest []domain.Review
		for _, r := range all {
			if r.CreatedAt.Before(at) || (r.CreatedAt.Equal(at) && r.ID < id) {
				rest = append(rest, r)
			}
		}
		all = rest
	}
	page := domain.ReviewsPage{Items: all}
	if len(all) > pg.Limit {
		page.Items = all[:pg.Limit]
		last := page.Items[len(page.Items)-1]
		c := domain.EncodeCursor(last.CreatedAt, last.ID)
		page.NextCursor = &c
	}
	return page, nil
}

func (m *memStore) ListDestinations(_ context.Context, city string) ([]domain.Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Destination
	for _, d := range m.dests {
		if city == "" || d.City == city {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetDestination(_ context.Context, id string) (domain.Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dests[id]
	if !ok {
		return domain.Destination{}, domain.ErrNotFound
	}
	return d, nil
}

func (m *memStore) InsertSensorReading(_ context.Context, r domain.SensorReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sensors[r.DestinationID] = r
	return nil
}

func (m *memStore) LatestSensorReading(_ context.Context, id string) (*domain.SensorReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.sensors[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memStore) UpsertPopularity(_ context.Context, samples []domain.PopularitySample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range samples {
		cur := m.popularity[s.DestinationID]
		replaced := false
		for i := range cur {
			if cur[i].Hour == s.Hour {
				cur[i] = s
				replaced = true
			}
		}
		if !replaced {
			cur = append(cur, s)
		}
		m.popularity[s.DestinationID] = cur
	}
	return nil
}

func (m *memStore) Popularity(_ context.Context, id string) ([]domain.PopularitySample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PopularitySample(nil), m.popularity[id]...), nil
}

func (m *memStore) UpsertWeather(_ context.Context, w domain.WeatherReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weather[w.DestinationID] = w
	return nil
}

func (m *memStore) LatestWeather(_ context.Context, id string) (*domain.WeatherReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.weather[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (m *memStore) CreateEvent(_ context.Context, e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memStore) EventsBetween(_ context.Context, id string, from, to time.Time) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, e := range m.events {
		if e.DestinationID == id && e.EndsAt.After(from) && e.StartsAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) SaveCrowdIndex(_ context.Context, ci domain.CrowdIndex) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, ci)
	return nil
}

func (m *memStore) CrowdHistory(_ context.Context, id string, since time.Time, limit int) ([]domain.CrowdIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CrowdIndex
	for i := len(m.snapshots) - 1; i >= 0 && len(out) < limit; i-- {
		ci := m.snapshots[i]
		if ci.DestinationID == id && !ci.ComputedAt.Before(since) {
			out = append(out, ci)
		}
	}
	return out, nil
}

func (m *memStore) LogMiss(_ context.Context, id string, status int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.missErr != nil {
		return m.missErr
	}
	m.misses = append(m.misses, id+":"+reason)
	m.missCodes = append(m.missCodes, status)
	return nil
}

func (m *memStore) GetAirport(_ context.Context, code string) (domain.Airport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.airports[code]
	if !ok {
		return domain.Airport{}, domain.ErrNotFound
	}
	return a, nil
}

func (m *memStore) Network(_ context.Context) (domain.TransitNetwork, error) {
	return m.network, nil
}

// ---------- payment gateway ----------
type fakeGateway struct {
	mu       sync.Mutex
	status   string
	created  int
	refunded []string
}

func (g *fakeGateway) Name() string { return "card" }

func (g *fakeGateway) CreateIntent(_ context.Context, key string, amount decimal.Decimal, currency string) (domain.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created++
	return domain.Intent{Ref: "pi_" + key, ClientSecret: "secret", Status: "requires_payment_method", Amount: amount, Currency: currency}, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, ref string) (domain.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return domain.Intent{Ref: ref, Status: g.status}, nil
}

func (g *fakeGateway) Refund(_ context.Context, ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunded = append(g.refunded, ref)
	return nil
}
