package handler

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/api/middleware"
	"github.com/waypointwalk/waypointwalk/internal/api/models"
	"github.com/waypointwalk/waypointwalk/internal/api/response"
	"github.com/waypointwalk/waypointwalk/internal/featureflags"
)

// FeatureFlagsHandler lets operators read and change runtime switches.
type FeatureFlagsHandler struct {
	service *featureflags.Service
	logger  zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service, logger zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service, logger: logger}
}

// ListFeatureFlags handles GET /v1/ops/flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, flagList(h.service.GetAllFlags(r.Context())))
}

// UpsertFeatureFlags handles PUT /v1/ops/flags. Updates are applied all or nothing.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req models.FeatureFlagUpdateRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if len(req.Updates) == 0 {
		response.BadRequest(w, r, "no updates given", []models.FieldError{
			{Field: "updates", Message: "must contain at least one update", Code: "REQUIRED"},
		})
		return
	}

	flags := make([]*featureflags.Flag, 0, len(req.Updates))
	for i, u := range req.Updates {
		if err := featureflags.Validate(u.Key, u.Value); err != nil {
			field := fmt.Sprintf("updates[%d].value", i)
			code := "INVALID"
			if errors.Is(err, featureflags.ErrUnknownFlag) {
				field = fmt.Sprintf("updates[%d].key", i)
				code = "UNKNOWN"
			}
			response.BadRequest(w, r, "feature flag update is invalid", []models.FieldError{
				{Field: field, Message: err.Error(), Code: code},
			})
			return
		}
		flags = append(flags, &featureflags.Flag{Key: u.Key, Value: u.Value})
	}

	if err := h.service.SetFlags(r.Context(), flags); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	for _, f := range flags {
		h.logger.Info().
			Str("flag", f.Key).
			Interface("value", f.Value).
			Str("subject", middleware.GetSubject(r.Context())).
			Str("reason", req.Reason).
			Msg("feature flag updated")
	}

	response.JSON(w, r, http.StatusOK, flagList(h.service.GetAllFlags(r.Context())))
}

// ResetFeatureFlag handles DELETE /v1/ops/flags/{flagKey}.
func (h *FeatureFlagsHandler) ResetFeatureFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "flagKey")
	err := h.service.Reset(r.Context(), key)
	switch {
	case errors.Is(err, featureflags.ErrUnknownFlag):
		response.NotFound(w, r, "unknown feature flag")
		return
	case err != nil:
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info().
		Str("flag", key).
		Str("subject", middleware.GetSubject(r.Context())).
		Msg("feature flag reset")
	response.NoContent(w, r)
}

// InvalidateCache handles POST /v1/ops/flags/invalidate.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}

func flagList(flags map[string]*featureflags.Flag) models.FeatureFlagList {
	items := make([]models.FeatureFlag, 0, len(flags))
	for _, f := range flags {
		items = append(items, models.FeatureFlag{
			Key:       f.Key,
			Value:     f.Value,
			UpdatedAt: models.TimestampPtr(&f.UpdatedAt),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return models.FeatureFlagList{Items: items}
}
