// Package database manages the PostgreSQL pool backing the route catalog,
// the shared route cache and feature flags.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Config holds database connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	// MaxConns and MinConns size the pgx pool.
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration

	// ConnectTimeout bounds how long Connect keeps retrying the initial ping.
	// Zero tries once.
	ConnectTimeout time.Duration
}

// ConfigFromEnv creates a Config from DB_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            envInt("DB_PORT", 5432),
		User:            getEnvOrDefault("DB_USER", "waypointwalk"),
		Password:        getEnvOrDefault("DB_PASSWORD", "localdev"),
		Name:            getEnvOrDefault("DB_NAME", "waypointwalk"),
		SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
		MaxConns:        int32(envInt("DB_MAX_CONNS", 10)), //nolint:gosec // small operator-supplied value
		MinConns:        int32(envInt("DB_MIN_CONNS", 2)),  //nolint:gosec // small operator-supplied value
		ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ConnectTimeout:  envDuration("DB_CONNECT_TIMEOUT", 30*time.Second),
	}
}

// Enabled reports whether a database was configured. Without DB_HOST the
// binaries fall back to in-memory or file storage.
func Enabled() bool {
	return os.Getenv("DB_HOST") != ""
}

// ConnectionString returns the PostgreSQL connection URL.
func (c Config) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Connect creates a connection pool and waits until the database answers a
// ping, retrying with exponential backoff for up to cfg.ConnectTimeout.
func Connect(ctx context.Context, cfg Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && cfg.MinConns <= poolConfig.MaxConns {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pingWithRetry(ctx, pool, cfg.ConnectTimeout, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func pingWithRetry(ctx context.Context, db pinger, timeout time.Duration, logger zerolog.Logger) error {
	if timeout <= 0 {
		return db.Ping(ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = timeout

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return db.Ping(ctx)
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("database not ready")
	})
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func envDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
