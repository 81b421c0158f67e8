package httpserver

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"croffers/internal/domain"
)

func (h *Handlers) registerUser(w http.ResponseWriter, r *http.Request) {
	var in domain.RegisterUserInput
	if !decodeJSON(w, r, &in) {
		return
	}
	u, err := h.Users.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handlers) createListing(w http.ResponseWriter, r *http.Request) {
	var in domain.ListingInput
	if !decodeJSON(w, r, &in) {
		return
	}
	l, err := h.Catalog.Create(r.Context(), userID(r.Context()), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handlers) updateListing(w http.ResponseWriter, r *http.Request) {
	var in domain.ListingInput
	if !decodeJSON(w, r, &in) {
		return
	}
	l, err := h.Catalog.Update(r.Context(), userID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) deactivateListing(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Deactivate(r.Context(), userID(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) getListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, l)
}

func (h *Handlers) myListings(w http.ResponseWriter, r *http.Request) {
	items, err := h.Catalog.ListBySupplier(r.Context(), userID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(items))
}

func (h *Handlers) searchListings(w http.ResponseWriter, r *http.Request) {
	q := &query{r: r}
	lq := domain.ListingQuery{
		City:      q.str("city"),
		Country:   q.str("country"),
		Q:         q.str("q"),
		MinRating: q.number("min_rating"),
		Guests:    q.integer("guests"),
		From:      q.timestamp("from"),
		To:        q.timestamp("to"),
		Sort:      domain.ListingSort(valueOr(q.str("sort"))),
		Limit:     q.integer("limit"),
		Offset:    q.integer("offset"),
	}
	if k := q.str("kind"); k != nil {
		kind := domain.ListingKind(*k)
		lq.Kind = &kind
	}
	lq.MinPrice = q.amount("min_price")
	lq.MaxPrice = q.amount("max_price")
	if !q.ok(w) {
		return
	}

	page, err := h.Catalog.Search(r.Context(), lq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (q *query) amount(name string) *decimal.Decimal {
	v := q.r.URL.Query().Get(name)
	if v == "" || q.err != nil {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		q.err = fmt.Errorf("%s must be a decimal number", name)
		return nil
	}
	return &d
}
