package routecache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/waypointwalk/waypointwalk/internal/tour"
)

// MemoryStore keeps routes in process memory. Entries never expire.
type MemoryStore struct {
	cache *gocache.Cache
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(gocache.NoExpiration, 0),
		now:   time.Now,
	}
}

// Get returns the stored entry for routeID.
func (s *MemoryStore) Get(_ context.Context, routeID string) (*Entry, error) {
	v, ok := s.cache.Get(routeID)
	if !ok {
		return nil, ErrNotCached
	}

	entry := v.(Entry)
	entry.Route = entry.Route.Clone()
	return &entry, nil
}

// Put stores a copy of route under routeID.
func (s *MemoryStore) Put(_ context.Context, routeID string, route *tour.Route) error {
	s.cache.Set(routeID, Entry{
		RouteID: routeID,
		Route:   route.Clone(),
		SavedAt: s.now(),
	}, gocache.NoExpiration)
	return nil
}

// Len returns the number of stored routes.
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}

var _ Store = (*MemoryStore)(nil)
