package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates the catalog, cache and feature flag tables. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS routes (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		start_lat     DOUBLE PRECISION NOT NULL,
		start_lon     DOUBLE PRECISION NOT NULL,
		start_address TEXT NOT NULL DEFAULT '',
		end_lat       DOUBLE PRECISION NOT NULL,
		end_lon       DOUBLE PRECISION NOT NULL,
		end_address   TEXT NOT NULL DEFAULT '',
		waypoints     JSONB NOT NULL DEFAULT '[]'::jsonb,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS routes_name_idx ON routes (name)`,
	`CREATE TABLE IF NOT EXISTS route_cache (
		route_id TEXT PRIMARY KEY,
		payload  JSONB NOT NULL,
		saved_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS feature_flags (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates any missing tables.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
