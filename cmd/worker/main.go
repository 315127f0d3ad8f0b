// Package main provides the entrypoint for the WaypointWalk cache warm worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/api/handler"
	"github.com/waypointwalk/waypointwalk/internal/api/middleware"
	"github.com/waypointwalk/waypointwalk/internal/api/response"
	"github.com/waypointwalk/waypointwalk/internal/database"
	"github.com/waypointwalk/waypointwalk/internal/resilience"
	"github.com/waypointwalk/waypointwalk/internal/routecache"
	"github.com/waypointwalk/waypointwalk/internal/telemetry"
	"github.com/waypointwalk/waypointwalk/internal/tourclient"
	"github.com/waypointwalk/waypointwalk/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "waypointwalk-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting WaypointWalk worker")

	cfg := worker.ConfigFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.ConfigFromEnv(serviceName, Version))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// The warmed store must be the one devices read: Postgres or a shared directory.
	var (
		store    routecache.Store
		dbPinger handler.Pinger
	)
	switch {
	case database.Enabled():
		pool, connErr := database.Connect(ctx, database.ConfigFromEnv(), log)
		if connErr != nil {
			log.Fatal().Err(connErr).Msg("failed to connect to database")
		}
		defer pool.Close()
		if schemaErr := database.EnsureSchema(ctx, pool); schemaErr != nil {
			log.Fatal().Err(schemaErr).Msg("failed to ensure database schema")
		}
		store = routecache.NewPostgresStore(pool)
		dbPinger = pool
		log.Info().Msg("warming the postgres route cache")
	case cfg.CacheDir != "":
		fileStore, storeErr := routecache.NewFileStore(cfg.CacheDir)
		if storeErr != nil {
			log.Fatal().Err(storeErr).Msg("failed to open route cache directory")
		}
		store = fileStore
		log.Info().Str("dir", cfg.CacheDir).Msg("warming the file route cache")
	default:
		log.Fatal().Msg("either DB_HOST or ROUTE_CACHE_DIR must be set")
	}

	registry := resilience.NewRegistry()
	catalog := tourclient.NewClient(tourclient.ClientConfig{
		BaseURL:  cfg.CatalogBaseURL,
		Registry: registry,
	})

	job := worker.NewWarmJob(worker.WarmJobConfig{
		Config:  cfg.Warm,
		Catalog: catalog,
		Fetcher: catalog,
		Store:   store,
		Logger:  log,
	})

	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Database:  dbPinger,
		Registry:  registry,
		Logger:    log,
	})

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Get("/health", ops.HealthCheck)
	router.Get("/ready", ops.ReadinessCheck)
	router.Get("/metrics/warm", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, job.MetricsSnapshot())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.ProjectID != "" {
		handlerPS, psErr := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.ProjectID,
			SubscriptionName: cfg.SubscriptionName,
			Runner:           job,
			Logger:           log,
		})
		if psErr != nil {
			log.Fatal().Err(psErr).Msg("failed to create pubsub handler")
		}
		defer func() {
			if closeErr := handlerPS.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handlerPS.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub receive stopped")
			}
		}()
	} else {
		log.Info().Dur("interval", cfg.Interval).Msg("no subscription configured, warming on a schedule")
		go runScheduled(ctx, job, cfg.Interval, log)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

func runScheduled(ctx context.Context, job *worker.WarmJob, interval time.Duration, log zerolog.Logger) {
	run := func() {
		if _, err := job.Run(ctx); err != nil {
			log.Error().Err(err).Msg("scheduled warm failed")
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
