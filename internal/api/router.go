// Package api provides the HTTP API for WaypointWalk.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/api/handler"
	"github.com/waypointwalk/waypointwalk/internal/api/middleware"
	"github.com/waypointwalk/waypointwalk/internal/api/models"
	"github.com/waypointwalk/waypointwalk/internal/auth"
	"github.com/waypointwalk/waypointwalk/internal/featureflags"
	"github.com/waypointwalk/waypointwalk/internal/resilience"
	"github.com/waypointwalk/waypointwalk/internal/session"
	"github.com/waypointwalk/waypointwalk/internal/tour"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// JWTService validates operator tokens for catalog writes.
	JWTService *auth.JWTService
	Catalog    *tour.Service
	Sessions   *session.Manager

	// Flags enables the operator feature flag endpoints when set.
	Flags *featureflags.Service

	// Database and Registry feed the readiness probe; both optional.
	Database handler.Pinger
	Registry *resilience.Registry

	// CORSOrigins lists browser origins allowed to call the API. Empty disables CORS.
	CORSOrigins []string
	RequireTLS  bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "waypointwalk-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"Location", "X-Request-Id", "Retry-After"},
			MaxAge:         600,
		}).Handler)
	}
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewNotFound(middleware.GetRequestID(r.Context()), "no such endpoint")
		problem.Instance = r.URL.Path
		problem.Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewProblem(models.ProblemTypeMethodNotAllowed, "Method not allowed", http.StatusMethodNotAllowed, middleware.GetRequestID(r.Context()))
		problem.Detail = r.Method + " is not supported on this endpoint"
		problem.Instance = r.URL.Path
		problem.Write(w)
	})

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Database:  cfg.Database,
		Registry:  cfg.Registry,
		Sessions:  cfg.Sessions,
		Logger:    cfg.Logger,
	})
	routeHandler := handler.NewRouteHandler(cfg.Catalog, cfg.Logger)
	sessionHandler := handler.NewSessionHandler(cfg.Sessions, cfg.Logger)

	operatorOnly := middleware.RequireRole(cfg.JWTService, auth.RoleOperator)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min
	positionRateLimit := middleware.RateLimitByIP(middleware.PositionRateLimit) // 300 req/min
	writeRateLimit := middleware.RateLimitBySubject(middleware.WriteRateLimit)  // 30 req/min per operator

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (probes are public and unlimited)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)

			if cfg.Flags != nil {
				flagsHandler := handler.NewFeatureFlagsHandler(cfg.Flags, cfg.Logger)
				r.Route("/flags", func(r chi.Router) {
					r.Use(operatorOnly)
					r.Use(writeRateLimit)
					r.Get("/", flagsHandler.ListFeatureFlags)
					r.With(middleware.RequireJSON).Put("/", flagsHandler.UpsertFeatureFlags)
					r.Delete("/{flagKey}", flagsHandler.ResetFeatureFlag)
					r.Post("/invalidate", flagsHandler.InvalidateCache)
				})
			}
		})

		// Route catalog - reads are public, writes need an operator token
		r.Route("/routes", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", routeHandler.ListRoutes)
			r.Route("/{routeId}", func(r chi.Router) {
				r.With(standardRateLimit).Get("/", routeHandler.GetRoute)
				r.With(standardRateLimit).Get("/geometry", routeHandler.GetGeometry)

				r.Group(func(r chi.Router) {
					r.Use(operatorOnly)
					r.Use(writeRateLimit)
					r.With(middleware.RequireJSON).Put("/", routeHandler.PutRoute)
					r.Delete("/", routeHandler.DeleteRoute)
				})
			})
		})

		// Remote walking sessions
		r.Route("/sessions", func(r chi.Router) {
			r.Use(middleware.RequireJSON)
			r.With(standardRateLimit).Post("/", sessionHandler.CreateSession)
			r.Route("/{sessionId}", func(r chi.Router) {
				r.With(standardRateLimit).Get("/", sessionHandler.GetSession)
				r.With(standardRateLimit).Delete("/", sessionHandler.DeleteSession)
				r.With(positionRateLimit).Post("/positions", sessionHandler.PushPosition)
				r.With(standardRateLimit).Post("/simulate-arrival", sessionHandler.SimulateArrival)
			})
		})
	})

	return r
}
