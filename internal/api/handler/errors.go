package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/api/models"
	"github.com/waypointwalk/waypointwalk/internal/api/response"
	"github.com/waypointwalk/waypointwalk/internal/routecache"
	"github.com/waypointwalk/waypointwalk/internal/session"
	"github.com/waypointwalk/waypointwalk/internal/tour"
)

// writeError maps domain errors to problem responses. Unknown errors are logged
// and reported as 500 without their message.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	var validation *tour.ValidationError
	switch {
	case errors.As(err, &validation):
		fields := make([]models.FieldError, 0, len(validation.Errors))
		for _, fe := range validation.Errors {
			fields = append(fields, models.FieldError{Field: fe.Field, Message: fe.Message, Code: "INVALID"})
		}
		response.BadRequest(w, r, "route is invalid", fields)
	case errors.Is(err, tour.ErrRouteNotFound):
		response.NotFound(w, r, "route not found")
	case errors.Is(err, session.ErrSessionNotFound):
		response.NotFound(w, r, "session not found or expired")
	case errors.Is(err, session.ErrClosed):
		response.Conflict(w, r, "session is closed")
	case errors.Is(err, session.ErrNotLoaded):
		response.Conflict(w, r, "session has no route loaded")
	case errors.Is(err, routecache.ErrUnavailable):
		response.ServiceUnavailable(w, r, "route is not available: the catalog cannot be reached and no cached copy exists")
	default:
		logger.Error().
			Err(err).
			Str("request_id", middlewareRequestID(r)).
			Str("path", r.URL.Path).
			Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
