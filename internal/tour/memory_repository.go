package tour

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Used in tests and when no database is configured.
type InMemoryRepository struct {
	mu     sync.RWMutex
	routes map[string]*Route
}

// NewInMemoryRepository creates a new in-memory route repository seeded with routes.
func NewInMemoryRepository(seed ...*Route) *InMemoryRepository {
	r := &InMemoryRepository{
		routes: make(map[string]*Route, len(seed)),
	}
	for _, route := range seed {
		r.routes[route.ID] = route.Clone()
	}
	return r
}

// List returns every route ordered by name.
func (r *InMemoryRepository) List(_ context.Context) ([]*Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]*Route, 0, len(r.routes))
	for _, route := range r.routes {
		routes = append(routes, route.Clone())
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Name == routes[j].Name {
			return routes[i].ID < routes[j].ID
		}
		return routes[i].Name < routes[j].Name
	})
	return routes, nil
}

// Get retrieves a route by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	route, ok := r.routes[id]
	if !ok {
		return nil, ErrRouteNotFound
	}
	return route.Clone(), nil
}

// Upsert creates or replaces a route.
func (r *InMemoryRepository) Upsert(_ context.Context, route *Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := route.Clone()
	cpy.UpdatedAt = time.Now()
	r.routes[route.ID] = cpy
	return nil
}

// Delete deletes a route by ID.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.routes[id]; !ok {
		return ErrRouteNotFound
	}
	delete(r.routes, id)
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
