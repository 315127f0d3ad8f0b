// Package routecache decides, for each route load, whether to use fresh network data
// or fall back to a previously stored copy.
package routecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/tour"
)

// Sentinel errors for route loading.
var (
	// ErrUnavailable means no network data and no cached copy exist for the route.
	ErrUnavailable = errors.New("route unavailable: no network and no cached copy")
	// ErrFetchFailed means the network fetch failed and cache fallback was disabled.
	ErrFetchFailed = errors.New("route fetch failed")
	// ErrNotCached is returned by stores that have no entry for a route.
	ErrNotCached = errors.New("route not cached")
)

// Fetcher retrieves a fully materialized route from the network.
type Fetcher interface {
	Fetch(ctx context.Context, routeID string) (*tour.Route, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, routeID string) (*tour.Route, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, routeID string) (*tour.Route, error) {
	return f(ctx, routeID)
}

// Entry is a stored copy of a route.
type Entry struct {
	RouteID string
	Route   *tour.Route
	SavedAt time.Time
}

// Store is keyed persistent storage for routes.
// Get returns ErrNotCached when no entry exists.
type Store interface {
	Get(ctx context.Context, routeID string) (*Entry, error)
	Put(ctx context.Context, routeID string, route *tour.Route) error
}

// Source tells where a loaded route came from.
type Source string

const (
	SourceNetwork Source = "network"
	SourceCache   Source = "cache"
)

// Result is a successfully loaded route.
type Result struct {
	Route  *tour.Route
	Source Source
	// SavedAt is when the cached copy was written; zero for network loads.
	SavedAt time.Time
	// FetchErr is the network error that forced a cache fallback, if any.
	FetchErr error
}

// LoadError is returned when a route could not be loaded.
type LoadError struct {
	RouteID string
	Err     error // ErrUnavailable or ErrFetchFailed
	Cause   error // underlying fetch error, if a fetch was attempted
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("load route %s: %v: %v", e.RouteID, e.Err, e.Cause)
	}
	return fmt.Sprintf("load route %s: %v", e.RouteID, e.Err)
}

func (e *LoadError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

// PolicyConfig holds configuration for the load policy.
type PolicyConfig struct {
	// Store holds cached routes.
	Store Store

	// Logger for policy decisions.
	Logger zerolog.Logger

	// StrictReachability keeps the legacy behaviour: a fetch error while the
	// network is reported reachable fails the load instead of using the cache.
	StrictReachability bool
}

// Policy loads routes, preferring the network whenever it is reachable.
// The cache is a degraded-mode fallback only; it is never served while a fetch succeeds.
type Policy struct {
	store  Store
	logger zerolog.Logger
	strict bool
}

// NewPolicy creates a new load policy.
func NewPolicy(cfg PolicyConfig) *Policy {
	return &Policy{
		store:  cfg.Store,
		logger: cfg.Logger,
		strict: cfg.StrictReachability,
	}
}

// Load returns the route for routeID.
//
//  1. reachable: fetch, store best-effort, return.
//  2. fetch failed (unless strict) or not reachable: cached copy.
//  3. otherwise a *LoadError wrapping ErrUnavailable (or ErrFetchFailed when strict).
func (p *Policy) Load(ctx context.Context, routeID string, reachable bool, fetch Fetcher) (*Result, error) {
	logger := p.logger.With().Str("route_id", routeID).Bool("reachable", reachable).Logger()

	var fetchErr error
	if reachable {
		route, err := fetch.Fetch(ctx, routeID)
		if err == nil {
			p.save(ctx, logger, routeID, route)
			logger.Debug().Msg("route loaded from network")
			return &Result{Route: route, Source: SourceNetwork}, nil
		}

		fetchErr = err
		if p.strict {
			logger.Error().Err(err).Msg("route fetch failed")
			return nil, &LoadError{RouteID: routeID, Err: ErrFetchFailed, Cause: err}
		}
		logger.Warn().Err(err).Msg("route fetch failed, trying cached copy")
	}

	entry, err := p.store.Get(ctx, routeID)
	switch {
	case err == nil && entry != nil && entry.Route != nil:
		logger.Info().
			Time("saved_at", entry.SavedAt).
			Msg("serving cached route")
		return &Result{
			Route:    entry.Route,
			Source:   SourceCache,
			SavedAt:  entry.SavedAt,
			FetchErr: fetchErr,
		}, nil
	case err != nil && !errors.Is(err, ErrNotCached):
		logger.Error().Err(err).Msg("failed to read route cache")
	}

	logger.Warn().Msg("route unavailable")
	return nil, &LoadError{RouteID: routeID, Err: ErrUnavailable, Cause: fetchErr}
}

// save writes route to the store; failures are logged and never returned.
func (p *Policy) save(ctx context.Context, logger zerolog.Logger, routeID string, route *tour.Route) {
	if err := p.store.Put(ctx, routeID, route); err != nil {
		logger.Error().Err(err).Msg("failed to save route to cache")
		return
	}
	logger.Debug().Msg("route saved to cache")
}
