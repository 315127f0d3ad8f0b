package routecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waypointwalk/waypointwalk/internal/tour"
)

// PostgresStore keeps serialized routes in the route_cache table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL route store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns the stored entry for routeID.
func (s *PostgresStore) Get(ctx context.Context, routeID string) (*Entry, error) {
	query := `SELECT payload, saved_at FROM route_cache WHERE route_id = $1`

	var (
		payload []byte
		entry   = Entry{RouteID: routeID}
	)
	if err := s.pool.QueryRow(ctx, query, routeID).Scan(&payload, &entry.SavedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotCached
		}
		return nil, err
	}

	var route tour.Route
	if err := json.Unmarshal(payload, &route); err != nil {
		return nil, fmt.Errorf("decode cached route %s: %w", routeID, err)
	}
	entry.Route = &route
	return &entry, nil
}

// Put stores route under routeID, replacing any previous copy.
func (s *PostgresStore) Put(ctx context.Context, routeID string, route *tour.Route) error {
	payload, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("encode route %s: %w", routeID, err)
	}

	query := `
		INSERT INTO route_cache (route_id, payload, saved_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (route_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			saved_at = EXCLUDED.saved_at
	`
	_, err = s.pool.Exec(ctx, query, routeID, payload)
	return err
}

var _ Store = (*PostgresStore)(nil)
