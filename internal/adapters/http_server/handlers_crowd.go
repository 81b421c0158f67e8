package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"croffers/internal/domain"
)

func (h *Handlers) listDestinations(w http.ResponseWriter, r *http.Request) {
	items, err := h.Crowd.Destinations(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(items))
}

func (h *Handlers) getDestination(w http.ResponseWriter, r *http.Request) {
	d, err := h.Crowd.Destination(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) currentCrowd(w http.ResponseWriter, r *http.Request) {
	ci, err := h.Crowd.CurrentIndex(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ci)
}

func (h *Handlers) crowdHistory(w http.ResponseWriter, r *http.Request) {
	q := &query{r: r}
	since := q.timestamp("since")
	limit := q.integer("limit")
	if !q.ok(w) {
		return
	}
	items, err := h.Crowd.History(r.Context(), chi.URLParam(r, "id"), valueOr(since), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handlers) bestTimes(w http.ResponseWriter, r *http.Request) {
	q := &query{r: r}
	on := q.timestamp("date")
	limit := q.integer("limit")
	if !q.ok(w) {
		return
	}
	if on == nil {
		now := time.Now().UTC()
		on = &now
	}
	items, err := h.Recs.BestTimes(r.Context(), chi.URLParam(r, "id"), *on, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type sensorRequest struct {
	Count      int        `json:"count"`
	RecordedAt *time.Time `json:"recorded_at"`
}

func (h *Handlers) recordSensor(w http.ResponseWriter, r *http.Request) {
	var req sensorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reading := domain.SensorReading{
		DestinationID: chi.URLParam(r, "id"),
		Count:         req.Count,
		RecordedAt:    valueOr(req.RecordedAt),
	}
	if err := h.Crowd.RecordSensorReading(r.Context(), reading); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) createEvent(w http.ResponseWriter, r *http.Request) {
	var e domain.Event
	if !decodeJSON(w, r, &e) {
		return
	}
	e.ID = ""
	e.DestinationID = chi.URLParam(r, "id")
	out, err := h.Crowd.CreateEvent(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) recommendDestinations(w http.ResponseWriter, r *http.Request) {
	q := &query{r: r}
	city := q.str("city")
	at := q.timestamp("at")
	limit := q.integer("limit")
	if !q.ok(w) {
		return
	}
	if city == nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", "city is required")
		return
	}
	items, err := h.Recs.Destinations(r.Context(), *city, valueOr(at), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handlers) planJourney(w http.ResponseWriter, r *http.Request) {
	q := &query{r: r}
	airport, acc := q.str("airport"), q.str("accommodation_id")
	landing := q.timestamp("landing_at")
	if !q.ok(w) {
		return
	}
	if airport == nil || acc == nil || landing == nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", "airport, accommodation_id and landing_at are required")
		return
	}
	it, err := h.Journeys.PlanTrip(r.Context(), *airport, *acc, *landing)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}
