package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/api/models"
	"github.com/waypointwalk/waypointwalk/internal/api/response"
	"github.com/waypointwalk/waypointwalk/internal/arrival"
	"github.com/waypointwalk/waypointwalk/internal/geo"
	"github.com/waypointwalk/waypointwalk/internal/proximity"
	"github.com/waypointwalk/waypointwalk/internal/session"
)

// SessionHandler serves remote walking sessions: the device posts its positions
// and receives the arrivals they cause.
type SessionHandler struct {
	sessions *session.Manager
	logger   zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *session.Manager, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// CreateSession handles POST /v1/sessions. The route is loaded before the
// response, from the catalog or from the route cache.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var input models.CreateSessionRequest
	if err := response.Decode(r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if input.RouteID == "" {
		response.BadRequest(w, r, "routeId is required", []models.FieldError{
			{Field: "routeId", Message: "required", Code: "REQUIRED"},
		})
		return
	}

	remote, err := h.sessions.Create(input.RouteID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, r, "/v1/sessions/"+remote.ID, sessionView(remote))
}

// GetSession handles GET /v1/sessions/{sessionId}.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	remote, err := h.sessions.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, sessionView(remote))
}

// PushPosition handles POST /v1/sessions/{sessionId}/positions.
func (h *SessionHandler) PushPosition(w http.ResponseWriter, r *http.Request) {
	var input models.PositionRequest
	if err := response.Decode(r, &input); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	sample, fieldErrs := positionSample(input)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "position is invalid", fieldErrs)
		return
	}

	id := chi.URLParam(r, "sessionId")
	events, err := h.sessions.Push(r.Context(), id, sample)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.writeArrivals(w, r, id, events)
}

// SimulateArrival handles POST /v1/sessions/{sessionId}/simulate-arrival. It
// arrives the lowest-index waypoint not yet reached; the list is empty when
// every waypoint is already arrived.
func (h *SessionHandler) SimulateArrival(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	ev, ok, err := h.sessions.SimulateArrival(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var events []arrival.Event
	if ok {
		events = append(events, ev)
	}
	h.writeArrivals(w, r, id, events)
}

// DeleteSession handles DELETE /v1/sessions/{sessionId}.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "sessionId")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.NoContent(w, r)
}

func (h *SessionHandler) writeArrivals(w http.ResponseWriter, r *http.Request, id string, events []arrival.Event) {
	remote, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, arrivalsView(remote, events))
}

func positionSample(in models.PositionRequest) (proximity.Sample, []models.FieldError) {
	var errs []models.FieldError
	if in.Latitude == nil {
		errs = append(errs, models.FieldError{Field: "latitude", Message: "required", Code: "REQUIRED"})
	}
	if in.Longitude == nil {
		errs = append(errs, models.FieldError{Field: "longitude", Message: "required", Code: "REQUIRED"})
	}
	if in.Accuracy != nil && *in.Accuracy < 0 {
		errs = append(errs, models.FieldError{Field: "accuracy", Message: "must not be negative", Code: "OUT_OF_RANGE"})
	}
	if len(errs) > 0 {
		return proximity.Sample{}, errs
	}

	loc := geo.Coordinate{Lat: *in.Latitude, Lon: *in.Longitude}
	if err := loc.Validate(); err != nil {
		return proximity.Sample{}, []models.FieldError{{Field: "latitude,longitude", Message: err.Error(), Code: "OUT_OF_RANGE"}}
	}

	sample := proximity.Sample{Location: loc, Accuracy: in.Accuracy}
	if in.Timestamp != nil {
		sample.Timestamp = in.Timestamp.Time().UTC()
	} else {
		sample.Timestamp = time.Now().UTC()
	}
	return sample, nil
}
