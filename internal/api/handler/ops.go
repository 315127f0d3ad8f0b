// Package handler provides HTTP handlers for the WaypointWalk API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/api/models"
	"github.com/waypointwalk/waypointwalk/internal/api/response"
	"github.com/waypointwalk/waypointwalk/internal/resilience"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// Pinger is a dependency that can be checked for liveness, e.g. *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports the number of open sessions.
type SessionCounter interface {
	Count() int
}

// OpsConfig holds configuration for the operational endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Database is checked by the readiness probe when set.
	Database Pinger
	// Registry lists upstream circuit breakers; optional.
	Registry *resilience.Registry
	Sessions SessionCounter
	Logger   zerolog.Logger
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. A failing database makes the
// instance unready (503). An open upstream breaker only degrades it, since
// sessions can still be served from the route cache.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ready := models.Readiness{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Checks: []models.DependencyStatus{},
	}

	if h.cfg.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := h.cfg.Database.Ping(ctx)
		cancel()

		check := models.DependencyStatus{Name: "database", Status: models.HealthStatusOK}
		if err != nil {
			h.cfg.Logger.Warn().Err(err).Msg("readiness: database ping failed")
			detail := err.Error()
			check.Status = models.HealthStatusFail
			check.Detail = &detail
			ready.Status = models.HealthStatusFail
		}
		ready.Checks = append(ready.Checks, check)
	}

	if h.cfg.Registry != nil {
		for _, up := range h.cfg.Registry.All() {
			status := upstreamView(up)
			if status.Status != models.HealthStatusOK && ready.Status == models.HealthStatusOK {
				ready.Status = models.HealthStatusDegraded
			}
			ready.Upstreams = append(ready.Upstreams, status)
		}
	}

	if h.cfg.Sessions != nil {
		ready.Sessions = h.cfg.Sessions.Count()
	}

	code := http.StatusOK
	if ready.Status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, ready)
}

func upstreamView(h *resilience.Health) models.UpstreamStatus {
	out := models.UpstreamStatus{
		Name:          h.Name,
		Status:        models.HealthStatusOK,
		Breaker:       h.State.String(),
		LastSuccessAt: models.TimestampPtr(h.LastSuccessAt),
		LastFailureAt: models.TimestampPtr(h.LastFailureAt),
	}
	switch {
	case h.Down():
		out.Status = models.HealthStatusFail
	case h.Degraded():
		out.Status = models.HealthStatusDegraded
	}
	if h.LastError != "" {
		msg := h.LastError
		out.Message = &msg
	}
	return out
}
