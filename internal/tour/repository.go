package tour

import "context"

// Repository defines the interface for route catalog persistence.
type Repository interface {
	// List returns every route ordered by name.
	List(ctx context.Context) ([]*Route, error)

	// Get retrieves a route by ID.
	// Returns ErrRouteNotFound if the route doesn't exist.
	Get(ctx context.Context, id string) (*Route, error)

	// Upsert creates or replaces a route.
	Upsert(ctx context.Context, route *Route) error

	// Delete deletes a route by ID.
	// Returns ErrRouteNotFound if the route doesn't exist.
	Delete(ctx context.Context, id string) error
}
