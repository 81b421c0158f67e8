package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"croffers/internal/domain"
)

// bookingRequest takes dates as YYYY-MM-DD or RFC 3339.
type bookingRequest struct {
	ListingID string `json:"listing_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Quantity  int    `json:"quantity"`
	Guests    int    `json:"guests"`
}

func (h *Handlers) quote(w http.ResponseWriter, r *http.Request) {
	q := &query{r: r}
	start, end := q.timestamp("start"), q.timestamp("end")
	qty := q.integer("quantity")
	if !q.ok(w) {
		return
	}
	if start == nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", "start is required")
		return
	}
	if qty == 0 {
		qty = 1
	}
	out, err := h.Bookings.Quote(r.Context(), chi.URLParam(r, "id"), *start, valueOr(end), qty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := domain.BookingInput{ListingID: req.ListingID, Quantity: req.Quantity, Guests: req.Guests}
	var err error
	if in.StartDate, err = parseTime(req.StartDate); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "start_date must be a date (YYYY-MM-DD)")
		return
	}
	if req.EndDate != "" {
		if in.EndDate, err = parseTime(req.EndDate); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid body", "end_date must be a date (YYYY-MM-DD)")
			return
		}
	}

	b, err := h.Bookings.Create(r.Context(), userID(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/bookings/"+b.ID)
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Bookings.Get(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) myBookings(w http.ResponseWriter, r *http.Request) {
	items, err := h.Bookings.ListByTourist(r.Context(), userID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(items))
}

func (h *Handlers) listingBookings(w http.ResponseWriter, r *http.Request) {
	items, err := h.Bookings.ListByListing(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(items))
}

func (h *Handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Bookings.Cancel(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ---- payments ----

func (h *Handlers) checkout(w http.ResponseWriter, r *http.Request) {
	p, err := h.Payments.Checkout(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handlers) getPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.Payments.Get(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) syncPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// ownership check before touching the gateway
	if _, err := h.Payments.Get(r.Context(), userID(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Payments.Sync(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ---- reviews ----

func (h *Handlers) createReview(w http.ResponseWriter, r *http.Request) {
	var in domain.ReviewInput
	if !decodeJSON(w, r, &in) {
		return
	}
	rv, err := h.Reviews.Create(r.Context(), userID(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	q := &query{r: r}
	limit := q.integer("limit")
	cursor := q.str("cursor")
	if !q.ok(w) {
		return
	}
	if limit < 0 || limit > 200 {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
		return
	}

	// Newest first; aligns with DB index on (listing_id, created_at, id)
	out, err := h.Reviews.List(r.Context(), chi.URLParam(r, "id"), domain.PageQuery{Limit: limit, Cursor: cursor})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
