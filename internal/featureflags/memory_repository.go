package featureflags

import (
	"context"
	"sync"
)

// InMemoryRepository keeps flag overrides in process memory.
type InMemoryRepository struct {
	mu    sync.RWMutex
	flags map[string]Flag
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates a repository holding the given overrides.
func NewInMemoryRepository(flags ...*Flag) *InMemoryRepository {
	r := &InMemoryRepository{flags: make(map[string]Flag, len(flags))}
	for _, f := range flags {
		r.flags[f.Key] = *f
	}
	return r
}

// GetFlag returns the override for key.
func (r *InMemoryRepository) GetFlag(_ context.Context, key string) (*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.flags[key]
	if !ok {
		return nil, ErrFlagNotFound
	}
	return &f, nil
}

// GetAllFlags returns every override.
func (r *InMemoryRepository) GetAllFlags(_ context.Context) (map[string]*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Flag, len(r.flags))
	for k, f := range r.flags {
		f := f
		out[k] = &f
	}
	return out, nil
}

// SetFlags stores overrides.
func (r *InMemoryRepository) SetFlags(_ context.Context, flags []*Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range flags {
		r.flags[f.Key] = *f
	}
	return nil
}

// DeleteFlag removes the override for key.
func (r *InMemoryRepository) DeleteFlag(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.flags, key)
	return nil
}
