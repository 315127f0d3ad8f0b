package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/api/middleware"
	"github.com/waypointwalk/waypointwalk/internal/api/models"
	"github.com/waypointwalk/waypointwalk/internal/api/response"
	"github.com/waypointwalk/waypointwalk/internal/tour"
)

// RouteHandler serves the route catalog.
type RouteHandler struct {
	catalog *tour.Service
	logger  zerolog.Logger
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(catalog *tour.Service, logger zerolog.Logger) *RouteHandler {
	return &RouteHandler{catalog: catalog, logger: logger}
}

// ListRoutes handles GET /v1/routes.
func (h *RouteHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, routeSummaries(summaries))
}

// GetRoute handles GET /v1/routes/{routeId}.
func (h *RouteHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	route, err := h.catalog.Get(r.Context(), chi.URLParam(r, "routeId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, routeView(route))
}

// GetGeometry handles GET /v1/routes/{routeId}/geometry.
func (h *RouteHandler) GetGeometry(w http.ResponseWriter, r *http.Request) {
	geometry, err := h.catalog.Geometry(r.Context(), chi.URLParam(r, "routeId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, geometryView(geometry))
}

// PutRoute handles PUT /v1/routes/{routeId}. The body uses the catalog wire
// format; its id may be omitted but must match the path when present.
func (h *RouteHandler) PutRoute(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")

	var route tour.Route
	if err := response.Decode(r, &route); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if route.ID == "" {
		route.ID = routeID
	}
	if route.ID != routeID {
		response.BadRequest(w, r, "route id does not match the path", []models.FieldError{
			{Field: "id", Message: "must equal " + routeID, Code: "MISMATCH"},
		})
		return
	}

	_, err := h.catalog.Get(r.Context(), routeID)
	created := errors.Is(err, tour.ErrRouteNotFound)
	if err != nil && !created {
		writeError(w, r, h.logger, err)
		return
	}

	stored, err := h.catalog.Upsert(r.Context(), &route)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info().
		Str("route_id", routeID).
		Str("operator", middleware.GetSubject(r.Context())).
		Bool("created", created).
		Msg("route saved via API")

	if created {
		response.Created(w, r, "/v1/routes/"+routeID, routeView(stored))
		return
	}
	response.JSON(w, r, http.StatusOK, routeView(stored))
}

// DeleteRoute handles DELETE /v1/routes/{routeId}.
func (h *RouteHandler) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")
	if err := h.catalog.Delete(r.Context(), routeID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info().
		Str("route_id", routeID).
		Str("operator", middleware.GetSubject(r.Context())).
		Msg("route deleted via API")
	response.NoContent(w, r)
}
