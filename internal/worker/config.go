// Package worker runs background jobs that keep the shared route cache warm.
package worker

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// WarmConfig holds configuration for the cache warm job.
type WarmConfig struct {
	// RouteIDs limits warming to these routes.
	// If empty, every route in the catalog is warmed.
	RouteIDs []string

	// Concurrency is the number of routes fetched at once.
	// Default: 4
	Concurrency int

	// Timeout bounds the fetch and store of a single route.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultWarmConfig returns the default warm configuration.
func DefaultWarmConfig() WarmConfig {
	return WarmConfig{
		Concurrency: 4,
		Timeout:     30 * time.Second,
	}
}

func (c WarmConfig) withDefaults() WarmConfig {
	d := DefaultWarmConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// Config is the worker process configuration.
type Config struct {
	Port             string
	ProjectID        string
	SubscriptionName string
	CatalogBaseURL   string
	CacheDir         string

	// Interval schedules warm runs when no subscription is configured.
	Interval time.Duration

	Warm WarmConfig
}

// ConfigFromEnv reads the worker configuration from environment variables.
func ConfigFromEnv() Config {
	cfg := Config{
		Port:             getEnv("APP_PORT", "8080"),
		ProjectID:        os.Getenv("PUBSUB_PROJECT_ID"),
		SubscriptionName: getEnv("WARM_SUBSCRIPTION", "route-cache-warm"),
		CatalogBaseURL:   getEnv("CATALOG_BASE_URL", "http://localhost:8080"),
		CacheDir:         os.Getenv("ROUTE_CACHE_DIR"),
		Interval:         15 * time.Minute,
		Warm:             DefaultWarmConfig(),
	}

	if d, err := time.ParseDuration(os.Getenv("WARM_INTERVAL")); err == nil && d > 0 {
		cfg.Interval = d
	}

	if v := os.Getenv("WARM_ROUTE_IDS"); v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.Warm.RouteIDs = append(cfg.Warm.RouteIDs, id)
			}
		}
	}
	if n, err := strconv.Atoi(os.Getenv("WARM_CONCURRENCY")); err == nil && n > 0 {
		cfg.Warm.Concurrency = n
	}
	if d, err := time.ParseDuration(os.Getenv("WARM_TIMEOUT")); err == nil && d > 0 {
		cfg.Warm.Timeout = d
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
