package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"croffers/internal/domain"
)

// ---- mocks ----

type catalogMock struct{ mock.Mock }

func (m *catalogMock) Create(ctx context.Context, supplierID string, in domain.ListingInput) (domain.Listing, error) {
	args := m.Called(ctx, supplierID, in)
	return args.Get(0).(domain.Listing), args.Error(1)
}
func (m *catalogMock) Update(ctx context.Context, supplierID, id string, in domain.ListingInput) (domain.Listing, error) {
	args := m.Called(ctx, supplierID, id, in)
	return args.Get(0).(domain.Listing), args.Error(1)
}
func (m *catalogMock) Deactivate(ctx context.Context, supplierID, id string) error {
	return m.Called(ctx, supplierID, id).Error(0)
}
func (m *catalogMock) Get(ctx context.Context, id string) (domain.Listing, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Listing), args.Error(1)
}
func (m *catalogMock) Search(ctx context.Context, q domain.ListingQuery) (domain.ListingsPage, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(domain.ListingsPage), args.Error(1)
}
func (m *catalogMock) ListBySupplier(ctx context.Context, supplierID string) ([]domain.Listing, error) {
	args := m.Called(ctx, supplierID)
	out, _ := args.Get(0).([]domain.Listing)
	return out, args.Error(1)
}

type bookingMock struct{ mock.Mock }

func (m *bookingMock) Quote(ctx context.Context, listingID string, start, end time.Time, quantity int) (domain.Quote, error) {
	args := m.Called(ctx, listingID, start, end, quantity)
	return args.Get(0).(domain.Quote), args.Error(1)
}
func (m *bookingMock) Create(ctx context.Context, touristID string, in domain.BookingInput) (domain.Booking, error) {
	args := m.Called(ctx, touristID, in)
	return args.Get(0).(domain.Booking), args.Error(1)
}
func (m *bookingMock) Cancel(ctx context.Context, actorID, bookingID string) (domain.Booking, error) {
	args := m.Called(ctx, actorID, bookingID)
	return args.Get(0).(domain.Booking), args.Error(1)
}
func (m *bookingMock) Get(ctx context.Context, actorID, bookingID string) (domain.Booking, error) {
	args := m.Called(ctx, actorID, bookingID)
	return args.Get(0).(domain.Booking), args.Error(1)
}
func (m *bookingMock) ListByTourist(ctx context.Context, touristID string) ([]domain.Booking, error) {
	args := m.Called(ctx, touristID)
	out, _ := args.Get(0).([]domain.Booking)
	return out, args.Error(1)
}
func (m *bookingMock) ListByListing(ctx context.Context, supplierID, listingID string) ([]domain.Booking, error) {
	args := m.Called(ctx, supplierID, listingID)
	out, _ := args.Get(0).([]domain.Booking)
	return out, args.Error(1)
}

type reviewMock struct{ mock.Mock }

func (m *reviewMock) Create(ctx context.Context, touristID string, in domain.ReviewInput) (domain.Review, error) {
	args := m.Called(ctx, touristID, in)
	return args.Get(0).(domain.Review), args.Error(1)
}
func (m *reviewMock) List(ctx context.Context, listingID string, pg domain.PageQuery) (domain.ReviewsPage, error) {
	args := m.Called(ctx, listingID, pg)
	return args.Get(0).(domain.ReviewsPage), args.Error(1)
}

type journeyMock struct{ mock.Mock }

func (m *journeyMock) PlanTrip(ctx context.Context, airportCode, accommodationID string, landingAt time.Time) (domain.Itinerary, error) {
	args := m.Called(ctx, airportCode, accommodationID, landingAt)
	return args.Get(0).(domain.Itinerary), args.Error(1)
}

type recsMock struct{ mock.Mock }

func (m *recsMock) BestTimes(ctx context.Context, destinationID string, on time.Time, limit int) ([]domain.HourForecast, error) {
	args := m.Called(ctx, destinationID, on, limit)
	out, _ := args.Get(0).([]domain.HourForecast)
	return out, args.Error(1)
}
func (m *recsMock) Destinations(ctx context.Context, city string, at time.Time, limit int) ([]domain.DestinationRecommendation, error) {
	args := m.Called(ctx, city, at, limit)
	out, _ := args.Get(0).([]domain.DestinationRecommendation)
	return out, args.Error(1)
}

type userMock struct{ mock.Mock }

func (m *userMock) Register(ctx context.Context, in domain.RegisterUserInput) (domain.User, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(domain.User), args.Error(1)
}
func (m *userMock) Get(ctx context.Context, id string) (domain.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.User), args.Error(1)
}

type crowdMock struct{ mock.Mock }

func (m *crowdMock) Destinations(ctx context.Context, city string) ([]domain.Destination, error) {
	args := m.Called(ctx, city)
	out, _ := args.Get(0).([]domain.Destination)
	return out, args.Error(1)
}
func (m *crowdMock) Destination(ctx context.Context, id string) (domain.Destination, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Destination), args.Error(1)
}
func (m *crowdMock) CurrentIndex(ctx context.Context, destinationID string) (domain.CrowdIndex, error) {
	args := m.Called(ctx, destinationID)
	return args.Get(0).(domain.CrowdIndex), args.Error(1)
}
func (m *crowdMock) History(ctx context.Context, destinationID string, since time.Time, limit int) ([]domain.CrowdIndex, error) {
	args := m.Called(ctx, destinationID, since, limit)
	out, _ := args.Get(0).([]domain.CrowdIndex)
	return out, args.Error(1)
}
func (m *crowdMock) RecordSensorReading(ctx context.Context, r domain.SensorReading) error {
	return m.Called(ctx, r).Error(0)
}
func (m *crowdMock) CreateEvent(ctx context.Context, e domain.Event) (domain.Event, error) {
	args := m.Called(ctx, e)
	return args.Get(0).(domain.Event), args.Error(1)
}

type fixture struct {
	users    *userMock
	crowd    *crowdMock
	catalog  *catalogMock
	bookings *bookingMock
	reviews  *reviewMock
	journeys *journeyMock
	recs     *recsMock
	handler  http.Handler
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users: &userMock{}, crowd: &crowdMock{}, catalog: &catalogMock{}, bookings: &bookingMock{},
		reviews: &reviewMock{}, journeys: &journeyMock{}, recs: &recsMock{},
	}
	s := New()
	s.MountHandlers(&Handlers{
		Users: f.users, Crowd: f.crowd, Catalog: f.catalog, Bookings: f.bookings,
		Reviews: f.reviews, Journeys: f.journeys, Recs: f.recs,
	})
	f.handler = s.Mux()
	t.Cleanup(func() {
		f.users.AssertExpectations(t)
		f.crowd.AssertExpectations(t)
		f.catalog.AssertExpectations(t)
		f.bookings.AssertExpectations(t)
		f.reviews.AssertExpectations(t)
		f.journeys.AssertExpectations(t)
		f.recs.AssertExpectations(t)
	})
	return f
}

func (f *fixture) do(method, target, user, body string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var p problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

// ---- tests ----

func TestHealthz(t *testing.T) {
	s := New()
	s.MountHandlers(&Handlers{})
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	s = New()
	s.MountHandlers(&Handlers{Ready: func(context.Context) error { return errors.New("db down") }})
	w = httptest.NewRecorder()
	s.Mux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWriteError_StatusTable(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: bad", domain.ErrValidation), http.StatusBadRequest},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrUnavailable, http.StatusConflict},
		{domain.ErrBookingNotPending, http.StatusConflict},
		{domain.ErrAlreadyReviewed, http.StatusConflict},
		{domain.ErrBookingExpired, http.StatusGone},
		{domain.ErrPaymentFailed, http.StatusPaymentRequired},
		{domain.ErrNoSignals, http.StatusUnprocessableEntity},
		{domain.ErrNoRoute, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		writeError(w, httptest.NewRequest(http.MethodGet, "/x", nil), c.err)
		assert.Equal(t, c.want, w.Code, c.err.Error())
		p := decodeProblem(t, w)
		assert.Equal(t, c.want, p.Status)
	}

	w := httptest.NewRecorder()
	writeError(w, httptest.NewRequest(http.MethodGet, "/x", nil), errors.New("secret dsn leaked"))
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestIdentity(t *testing.T) {
	f := setup(t)

	w := f.do(http.MethodGet, "/v1/bookings", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, "/v1/bookings", "not-a-uuid", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	user := uuid.NewString()
	f.bookings.On("ListByTourist", mock.Anything, user).Return(nil, nil).Once()
	w = f.do(http.MethodGet, "/v1/bookings", user, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestGetListing_ETag(t *testing.T) {
	f := setup(t)
	l := domain.Listing{ID: uuid.NewString(), Title: "Villa", Price: decimal.RequireFromString("99.50"), Currency: "EUR", Active: true}
	f.catalog.On("Get", mock.Anything, l.ID).Return(l, nil).Twice()

	w := f.do(http.MethodGet, "/v1/listings/"+l.ID, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.True(t, strings.HasPrefix(etag, `W/"`))

	w = f.do(http.MethodGet, "/v1/listings/"+l.ID, "", "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.Bytes())
	assert.Equal(t, etag, w.Header().Get("ETag"))
}

func TestGetListing_NotFound(t *testing.T) {
	f := setup(t)
	f.catalog.On("Get", mock.Anything, "missing").Return(domain.Listing{}, domain.ErrNotFound).Once()

	w := f.do(http.MethodGet, "/v1/listings/missing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, decodeProblem(t, w).Status)
}

func TestSearchListings_ParsesFilters(t *testing.T) {
	f := setup(t)
	from := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC)

	f.catalog.On("Search", mock.Anything, mock.MatchedBy(func(q domain.ListingQuery) bool {
		return q.Kind != nil && *q.Kind == domain.KindAccommodation &&
			q.City != nil && *q.City == "Hvar" &&
			q.MinPrice != nil && q.MinPrice.Equal(decimal.NewFromInt(50)) &&
			q.Guests == 2 && q.From.Equal(from) && q.To.Equal(to) &&
			q.Sort == domain.SortPriceAsc && q.Limit == 10
	})).Return(domain.ListingsPage{Items: []domain.Listing{}, Limit: 10}, nil).Once()

	w := f.do(http.MethodGet, "/v1/listings?kind=accommodation&city=Hvar&min_price=50&guests=2&from=2026-07-01&to=2026-07-05&sort=price&limit=10", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/v1/listings?limit=ten", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodGet, "/v1/listings?min_price=cheap", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBooking(t *testing.T) {
	f := setup(t)
	user := uuid.NewString()
	listing := uuid.NewString()
	want := domain.BookingInput{
		ListingID: listing,
		StartDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC),
		Quantity:  1,
		Guests:    2,
	}
	f.bookings.On("Create", mock.Anything, user, want).
		Return(domain.Booking{ID: "b-1", ListingID: listing, Status: domain.BookingPending}, nil).Once()

	body := fmt.Sprintf(`{"listing_id":%q,"start_date":"2026-08-01","end_date":"2026-08-04","quantity":1,"guests":2}`, listing)
	w := f.do(http.MethodPost, "/v1/bookings", user, body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/v1/bookings/b-1", w.Header().Get("Location"))

	w = f.do(http.MethodPost, "/v1/bookings", user, `{"listing_id":"x","start_date":"August"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = f.do(http.MethodPost, "/v1/bookings", user, `{"unknown":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateBooking_Unavailable(t *testing.T) {
	f := setup(t)
	user := uuid.NewString()
	f.bookings.On("Create", mock.Anything, user, mock.Anything).Return(domain.Booking{}, domain.ErrUnavailable).Once()

	w := f.do(http.MethodPost, "/v1/bookings", user, `{"listing_id":"x","start_date":"2026-08-01","quantity":1,"guests":1}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListReviews_CursorAndETag(t *testing.T) {
	f := setup(t)
	next := "abc"
	page := domain.ReviewsPage{Items: []domain.Review{{ID: "r1", Rating: 5}}, NextCursor: &next}
	f.reviews.On("List", mock.Anything, "l1", domain.PageQuery{Limit: 10, Cursor: &next}).Return(page, nil).Once()
	f.reviews.On("List", mock.Anything, "l1", domain.PageQuery{}).Return(page, nil).Once()

	w := f.do(http.MethodGet, "/v1/listings/l1/reviews?limit=10&cursor=abc", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))

	w = f.do(http.MethodGet, "/v1/listings/l1/reviews", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/v1/listings/l1/reviews?limit=500", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlanJourney(t *testing.T) {
	f := setup(t)
	landing := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	f.journeys.On("PlanTrip", mock.Anything, "SPU", "villa", landing).
		Return(domain.Itinerary{Currency: "EUR", TotalPrice: decimal.RequireFromString("40.10")}, nil).Once()
	f.journeys.On("PlanTrip", mock.Anything, "SPU", "tent", landing).
		Return(domain.Itinerary{}, domain.ErrNoRoute).Once()

	w := f.do(http.MethodGet, "/v1/journeys?airport=SPU&accommodation_id=villa&landing_at=2026-07-01T08:00:00Z", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var it domain.Itinerary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &it))
	assert.Equal(t, "EUR", it.Currency)

	w = f.do(http.MethodGet, "/v1/journeys?airport=SPU&accommodation_id=tent&landing_at=2026-07-01T08:00:00Z", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(http.MethodGet, "/v1/journeys?airport=SPU", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBestTimes_DateParam(t *testing.T) {
	f := setup(t)
	on := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	f.recs.On("BestTimes", mock.Anything, "riva", on, 2).
		Return([]domain.HourForecast{{Hour: 7, Value: 12, Level: domain.CrowdLow}}, nil).Once()

	w := f.do(http.MethodGet, "/v1/destinations/riva/best-times?date=2026-07-15&limit=2", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"level":"low"`)

	w = f.do(http.MethodGet, "/v1/recommendations/destinations", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordSensor_RequiresOperatorRole(t *testing.T) {
	f := setup(t)
	tourist, supplier := uuid.NewString(), uuid.NewString()
	f.users.On("Get", mock.Anything, tourist).Return(domain.User{ID: tourist, Role: domain.RoleTourist}, nil)
	f.users.On("Get", mock.Anything, supplier).Return(domain.User{ID: supplier, Role: domain.RoleSupplier}, nil)
	f.crowd.On("RecordSensorReading", mock.Anything, mock.MatchedBy(func(r domain.SensorReading) bool {
		return r.DestinationID == "d1" && r.Count == 42
	})).Return(nil).Once()

	body := `{"count":42}`
	w := f.do(http.MethodPost, "/v1/destinations/d1/sensor-readings", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/v1/destinations/d1/sensor-readings", tourist, body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, http.StatusForbidden, decodeProblem(t, w).Status)

	w = f.do(http.MethodPost, "/v1/destinations/d1/sensor-readings", supplier, body)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestCreateEvent_UnknownUserForbidden(t *testing.T) {
	f := setup(t)
	ghost := uuid.NewString()
	f.users.On("Get", mock.Anything, ghost).Return(domain.User{}, domain.ErrNotFound)

	w := f.do(http.MethodPost, "/v1/destinations/d1/events", ghost, `{"name":"Regatta"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	f.crowd.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
}
