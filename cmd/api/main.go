// Package main provides the entrypoint for the WaypointWalk API server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/api"
	"github.com/waypointwalk/waypointwalk/internal/api/handler"
	"github.com/waypointwalk/waypointwalk/internal/api/middleware"
	"github.com/waypointwalk/waypointwalk/internal/auth"
	"github.com/waypointwalk/waypointwalk/internal/database"
	"github.com/waypointwalk/waypointwalk/internal/featureflags"
	"github.com/waypointwalk/waypointwalk/internal/notify"
	"github.com/waypointwalk/waypointwalk/internal/routecache"
	"github.com/waypointwalk/waypointwalk/internal/session"
	"github.com/waypointwalk/waypointwalk/internal/telemetry"
	"github.com/waypointwalk/waypointwalk/internal/tour"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "waypointwalk-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting WaypointWalk API")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx := context.Background()

	telemetryCfg := telemetry.ConfigFromEnv(serviceName, Version)
	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	sessionMetrics, err := telemetry.NewSessionMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session metrics")
	}

	// Storage: Postgres when DB_HOST is set, process memory otherwise.
	var (
		routeRepo  tour.Repository
		routeStore routecache.Store
		flagRepo   featureflags.Repository
		dbPinger   handler.Pinger
	)
	if database.Enabled() {
		dbConfig := database.ConfigFromEnv()
		pool, connErr := database.Connect(ctx, dbConfig, log)
		if connErr != nil {
			log.Fatal().Err(connErr).Msg("failed to connect to database")
		}
		defer pool.Close()

		if schemaErr := database.EnsureSchema(ctx, pool); schemaErr != nil {
			log.Fatal().Err(schemaErr).Msg("failed to ensure database schema")
		}

		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Name).
			Msg("database connected")

		routeRepo = tour.NewPostgresRepository(pool)
		routeStore = routecache.NewPostgresStore(pool)
		flagRepo = featureflags.NewPostgresRepository(pool)
		dbPinger = pool
	} else {
		seed, seedErr := loadSeed(os.Getenv("ROUTES_SEED_FILE"))
		if seedErr != nil {
			log.Fatal().Err(seedErr).Msg("failed to load route seed file")
		}
		routeRepo = tour.NewInMemoryRepository(seed...)
		routeStore = routecache.NewMemoryStore()
		flagRepo = featureflags.NewInMemoryRepository()
		log.Warn().
			Int("seed_routes", len(seed)).
			Msg("DB_HOST not set, using in-memory storage")
	}

	catalog := tour.NewService(tour.ServiceConfig{
		Repository: routeRepo,
		Logger:     log,
	})

	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: flagRepo,
		Logger:     log,
		CacheTTL:   time.Minute,
	})
	log.Info().Msg("feature flags service initialized")

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
	})

	notifiers := notify.Multi{notify.NewLogNotifier(log)}
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	topic := os.Getenv("ARRIVALS_TOPIC")
	if projectID != "" && topic != "" {
		publisher, pubErr := notify.NewTopicPublisher(ctx, projectID, topic)
		if pubErr != nil {
			log.Fatal().Err(pubErr).Msg("failed to create arrivals publisher")
		}
		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close arrivals publisher")
			}
		}()
		notifiers = append(notifiers, notify.NewPubSubNotifier(publisher, log))
		log.Info().Str("topic", topic).Msg("arrival notifications published to Pub/Sub")
	}

	sessions := session.NewManager(session.ManagerConfig{
		Policy: routecache.NewPolicy(routecache.PolicyConfig{
			Store:  routeStore,
			Logger: log,
		}),
		Fetcher:      catalog,
		Reachability: session.AlwaysReachable,
		Notifier: notify.Gate{
			Notifier: notifiers,
			Enabled:  flags.ArrivalNotificationsEnabled,
		},
		Thresholds: flags,
		Metrics:    sessionMetrics,
		Logger:     log,
	})
	defer sessions.Shutdown()

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		JWTService:  jwtService,
		Catalog:     catalog,
		Sessions:    sessions,
		Flags:       flags,
		Database:    dbPinger,
		CORSOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RequireTLS:  os.Getenv("REQUIRE_TLS") == "true",
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Int("active_sessions", sessions.Count()).Msg("server stopped")
}

// loadSeed reads a JSON array of routes in the catalog wire format.
func loadSeed(path string) ([]*tour.Route, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var routes []*tour.Route
	if err := json.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	for _, r := range routes {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("seed route %q: %w", r.ID, err)
		}
	}
	return routes, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
