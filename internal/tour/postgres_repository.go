package tour

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
// Waypoints are stored as a JSONB array in their wire shape.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL route repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const routeColumns = `
	id, name,
	start_lat, start_lon, start_address,
	end_lat, end_lon, end_address,
	waypoints, updated_at`

// List returns every route ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]*Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes ORDER BY name, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []*Route
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return routes, nil
}

// Get retrieves a route by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes WHERE id = $1`

	route, err := scanRoute(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, err
	}
	return route, nil
}

// scanRoute scans a route from a row.
func scanRoute(row pgx.Row) (*Route, error) {
	var (
		route     Route
		waypoints []byte
	)

	err := row.Scan(
		&route.ID,
		&route.Name,
		&route.Start.Location.Lat,
		&route.Start.Location.Lon,
		&route.Start.Address,
		&route.End.Location.Lat,
		&route.End.Location.Lon,
		&route.End.Address,
		&waypoints,
		&route.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(waypoints) > 0 {
		if err := json.Unmarshal(waypoints, &route.Waypoints); err != nil {
			return nil, fmt.Errorf("decode waypoints for route %s: %w", route.ID, err)
		}
	}
	return &route, nil
}

// Upsert creates or replaces a route.
func (r *PostgresRepository) Upsert(ctx context.Context, route *Route) error {
	waypoints, err := json.Marshal(route.Waypoints)
	if err != nil {
		return fmt.Errorf("encode waypoints: %w", err)
	}

	query := `
		INSERT INTO routes (
			id, name,
			start_lat, start_lon, start_address,
			end_lat, end_lon, end_address,
			waypoints, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			start_lat = EXCLUDED.start_lat,
			start_lon = EXCLUDED.start_lon,
			start_address = EXCLUDED.start_address,
			end_lat = EXCLUDED.end_lat,
			end_lon = EXCLUDED.end_lon,
			end_address = EXCLUDED.end_address,
			waypoints = EXCLUDED.waypoints,
			updated_at = NOW()
	`

	_, err = r.pool.Exec(ctx, query,
		route.ID,
		route.Name,
		route.Start.Location.Lat,
		route.Start.Location.Lon,
		route.Start.Address,
		route.End.Location.Lat,
		route.End.Location.Lon,
		route.End.Address,
		waypoints,
	)
	return err
}

// Delete deletes a route by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM routes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRouteNotFound
	}
	return nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
