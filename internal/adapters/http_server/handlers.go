package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"croffers/internal/domain"
)

// Service surfaces the handlers depend on. *app.XService values satisfy them.
type (
	UserAPI interface {
		Register(ctx context.Context, in domain.RegisterUserInput) (domain.User, error)
		Get(ctx context.Context, id string) (domain.User, error)
	}
	CatalogAPI interface {
		Create(ctx context.Context, supplierID string, in domain.ListingInput) (domain.Listing, error)
		Update(ctx context.Context, supplierID, id string, in domain.ListingInput) (domain.Listing, error)
		Deactivate(ctx context.Context, supplierID, id string) error
		Get(ctx context.Context, id string) (domain.Listing, error)
		Search(ctx context.Context, q domain.ListingQuery) (domain.ListingsPage, error)
		ListBySupplier(ctx context.Context, supplierID string) ([]domain.Listing, error)
	}
	BookingAPI interface {
		Quote(ctx context.Context, listingID string, start, end time.Time, quantity int) (domain.Quote, error)
		Create(ctx context.Context, touristID string, in domain.BookingInput) (domain.Booking, error)
		Cancel(ctx context.Context, actorID, bookingID string) (domain.Booking, error)
		Get(ctx context.Context, actorID, bookingID string) (domain.Booking, error)
		ListByTourist(ctx context.Context, touristID string) ([]domain.Booking, error)
		ListByListing(ctx context.Context, supplierID, listingID string) ([]domain.Booking, error)
	}
	PaymentAPI interface {
		Checkout(ctx context.Context, touristID, bookingID string) (domain.Payment, error)
		Sync(ctx context.Context, paymentID string) (domain.Payment, error)
		Get(ctx context.Context, touristID, paymentID string) (domain.Payment, error)
	}
	ReviewAPI interface {
		Create(ctx context.Context, touristID string, in domain.ReviewInput) (domain.Review, error)
		List(ctx context.Context, listingID string, pg domain.PageQuery) (domain.ReviewsPage, error)
	}
	CrowdAPI interface {
		Destinations(ctx context.Context, city string) ([]domain.Destination, error)
		Destination(ctx context.Context, id string) (domain.Destination, error)
		CurrentIndex(ctx context.Context, destinationID string) (domain.CrowdIndex, error)
		History(ctx context.Context, destinationID string, since time.Time, limit int) ([]domain.CrowdIndex, error)
		RecordSensorReading(ctx context.Context, r domain.SensorReading) error
		CreateEvent(ctx context.Context, e domain.Event) (domain.Event, error)
	}
	RecommendationAPI interface {
		BestTimes(ctx context.Context, destinationID string, on time.Time, limit int) ([]domain.HourForecast, error)
		Destinations(ctx context.Context, city string, at time.Time, limit int) ([]domain.DestinationRecommendation, error)
	}
	JourneyAPI interface {
		PlanTrip(ctx context.Context, airportCode, accommodationID string, landingAt time.Time) (domain.Itinerary, error)
	}
)

type Handlers struct {
	Users    UserAPI
	Catalog  CatalogAPI
	Bookings BookingAPI
	Payments PaymentAPI
	Reviews  ReviewAPI
	Crowd    CrowdAPI
	Recs     RecommendationAPI
	Journeys JourneyAPI
	// Ready reports backing store health for /healthz; nil means always ready.
	Ready func(ctx context.Context) error
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", h.healthz)

	s.mux.Route("/v1", func(r chi.Router) {
		r.Post("/users", h.registerUser)
		r.Get("/users/{id}", h.getUser)

		r.Get("/listings", h.searchListings)
		r.Get("/listings/{id}", h.getListing)
		r.Get("/listings/{id}/quote", h.quote)
		r.Get("/listings/{id}/reviews", h.listReviews)

		r.Get("/destinations", h.listDestinations)
		r.Get("/destinations/{id}", h.getDestination)
		r.Get("/destinations/{id}/crowd", h.currentCrowd)
		r.Get("/destinations/{id}/crowd/history", h.crowdHistory)
		r.Get("/destinations/{id}/best-times", h.bestTimes)

		r.Get("/recommendations/destinations", h.recommendDestinations)
		r.Get("/journeys", h.planJourney)

		r.Group(func(r chi.Router) {
			r.Use(Authenticated)

			r.Post("/listings", h.createListing)
			r.Put("/listings/{id}", h.updateListing)
			r.Delete("/listings/{id}", h.deactivateListing)
			r.Get("/listings/{id}/bookings", h.listingBookings)
			r.Get("/me/listings", h.myListings)

			r.Post("/bookings", h.createBooking)
			r.Get("/bookings", h.myBookings)
			r.Get("/bookings/{id}", h.getBooking)
			r.Post("/bookings/{id}/cancel", h.cancelBooking)
			r.Post("/bookings/{id}/checkout", h.checkout)

			r.Get("/payments/{id}", h.getPayment)
			r.Post("/payments/{id}/sync", h.syncPayment)

			r.Post("/reviews", h.createReview)

			r.Group(func(r chi.Router) {
				r.Use(h.requireRole(domain.RoleSupplier, domain.RoleAdmin))
				r.Post("/destinations/{id}/sensor-readings", h.recordSensor)
				r.Post("/destinations/{id}/events", h.createEvent)
			})
		})
	})
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.Ready != nil {
		if err := h.Ready(r.Context()); err != nil {
			log.Warn().Err(err).Msg("readiness check failed")
			writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "storage not reachable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ---- responses ----

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

var errStatus = []struct {
	err    error
	status int
}{
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrValidation, http.StatusBadRequest},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrUnavailable, http.StatusConflict},
	{domain.ErrBookingNotPending, http.StatusConflict},
	{domain.ErrAlreadyReviewed, http.StatusConflict},
	{domain.ErrReviewNotAllowed, http.StatusConflict},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrBookingExpired, http.StatusGone},
	{domain.ErrPaymentFailed, http.StatusPaymentRequired},
	{domain.ErrNoSignals, http.StatusUnprocessableEntity},
	{domain.ErrNoRoute, http.StatusUnprocessableEntity},
}

// writeError maps domain errors onto problem responses. Anything unmapped is
// logged and reported as a 500 without leaking the cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errStatus {
		if errors.Is(err, e.err) {
			writeProblem(w, e.status, http.StatusText(e.status), err.Error())
			return
		}
	}
	log.Error().Err(err).Str("route", routePattern(r)).Msg("request failed")
	writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCacheable answers 304 when the client already holds this version.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write cacheable body")
	}
}

// ---- requests ----

const maxBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return false
	}
	return true
}

// query is a small accumulator for query-string parsing; the first failure
// wins and is reported as a 400.
type query struct {
	r   *http.Request
	err error
}

func (q *query) str(name string) *string {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	return &v
}

func (q *query) integer(name string) int {
	v := q.r.URL.Query().Get(name)
	if v == "" || q.err != nil {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		q.err = fmt.Errorf("%s must be an integer", name)
	}
	return n
}

func (q *query) number(name string) *float64 {
	v := q.r.URL.Query().Get(name)
	if v == "" || q.err != nil {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		q.err = fmt.Errorf("%s must be a number", name)
		return nil
	}
	return &f
}

// timestamp accepts RFC 3339 timestamps and plain YYYY-MM-DD dates (UTC midnight).
func (q *query) timestamp(name string) *time.Time {
	v := q.r.URL.Query().Get(name)
	if v == "" || q.err != nil {
		return nil
	}
	t, err := parseTime(v)
	if err != nil {
		q.err = fmt.Errorf("%s must be a date (YYYY-MM-DD) or RFC 3339 time", name)
		return nil
	}
	return &t
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func (q *query) ok(w http.ResponseWriter) bool {
	if q.err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", q.err.Error())
		return false
	}
	return true
}

func valueOr[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
