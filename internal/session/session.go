// Package session runs one walk: it loads the route, then tracks arrivals
// from a live location stream until closed.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/arrival"
	"github.com/waypointwalk/waypointwalk/internal/proximity"
	"github.com/waypointwalk/waypointwalk/internal/routecache"
	"github.com/waypointwalk/waypointwalk/internal/tour"
)

var (
	// ErrNotLoaded is returned by operations that need a loaded route.
	ErrNotLoaded = errors.New("route not loaded")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")
	// ErrSuperseded is returned by a Start whose load was overtaken by a later Start.
	ErrSuperseded = errors.New("load superseded by a newer start")
)

// Reachability reports whether the network can be used right now.
type Reachability interface {
	Reachable(ctx context.Context) bool
}

// ReachabilityFunc adapts a function to Reachability.
type ReachabilityFunc func(ctx context.Context) bool

// Reachable calls f.
func (f ReachabilityFunc) Reachable(ctx context.Context) bool { return f(ctx) }

// AlwaysReachable reports the network as always up.
var AlwaysReachable = ReachabilityFunc(func(context.Context) bool { return true })

// Observer receives session events. ArrivalOccurred runs on the location
// delivery path and must not call Close synchronously.
type Observer interface {
	RouteLoaded(res *routecache.Result)
	RouteLoadFailed(err error)
	ArrivalOccurred(ev arrival.Event)
	PermissionDenied()
}

// ObserverFuncs implements Observer with optional callbacks.
type ObserverFuncs struct {
	OnRouteLoaded      func(res *routecache.Result)
	OnRouteLoadFailed  func(err error)
	OnArrival          func(ev arrival.Event)
	OnPermissionDenied func()
}

func (o ObserverFuncs) RouteLoaded(res *routecache.Result) {
	if o.OnRouteLoaded != nil {
		o.OnRouteLoaded(res)
	}
}

func (o ObserverFuncs) RouteLoadFailed(err error) {
	if o.OnRouteLoadFailed != nil {
		o.OnRouteLoadFailed(err)
	}
}

func (o ObserverFuncs) ArrivalOccurred(ev arrival.Event) {
	if o.OnArrival != nil {
		o.OnArrival(ev)
	}
}

func (o ObserverFuncs) PermissionDenied() {
	if o.OnPermissionDenied != nil {
		o.OnPermissionDenied()
	}
}

// Config holds the collaborators of a session.
type Config struct {
	RouteID string

	Policy       *routecache.Policy
	Fetcher      routecache.Fetcher
	Reachability Reachability

	LocationSource   proximity.LocationSource
	Permissions      proximity.PermissionRequester
	SubscribeOptions proximity.SubscribeOptions

	Observer Observer

	// Threshold is the arrival radius in meters. Default: 50.
	Threshold float64

	Logger zerolog.Logger
}

// Session is a single walk over one route. It is the sole owner of its
// proximity monitor and therefore of the location subscription.
type Session struct {
	cfg      Config
	observer Observer
	logger   zerolog.Logger

	mu        sync.Mutex
	gen       uint64
	closed    bool
	result    *routecache.Result
	loadErr   error
	tracker   *arrival.Tracker
	monitor   *proximity.Monitor
	arrivals  []arrival.Event
	stopWatch func() bool
}

// New creates a session. Nothing happens until Start.
func New(cfg Config) *Session {
	if cfg.Reachability == nil {
		cfg.Reachability = AlwaysReachable
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = arrival.DefaultThresholdMeters
	}

	observer := cfg.Observer
	if observer == nil {
		observer = ObserverFuncs{}
	}

	return &Session{
		cfg:      cfg,
		observer: observer,
		logger:   cfg.Logger.With().Str("route_id", cfg.RouteID).Logger(),
	}
}

// Start loads the route once and, on success, starts tracking arrivals.
// Calling Start again refreshes: the previous monitor is stopped and the
// result of any load still in flight is discarded. The session closes
// itself when ctx is cancelled.
//
// A denied location permission is reported to the observer but does not
// fail Start; the route stays viewable.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.gen++
	gen := s.gen
	prev := s.monitor
	s.monitor = nil
	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.stopWatch = context.AfterFunc(ctx, s.Close)
	s.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}

	reachable := s.cfg.Reachability.Reachable(ctx)
	res, err := s.cfg.Policy.Load(ctx, s.cfg.RouteID, reachable, s.cfg.Fetcher)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug().Msg("discarding superseded route load")
		return ErrSuperseded
	}

	if err != nil {
		s.result = nil
		s.loadErr = err
		s.tracker = nil
		s.arrivals = nil
		s.mu.Unlock()

		s.logger.Warn().Err(err).Msg("route load failed")
		s.observer.RouteLoadFailed(err)
		return err
	}

	tracker := arrival.NewTracker(res.Route, arrival.WithThreshold(s.cfg.Threshold))
	monitor := proximity.NewMonitor(proximity.MonitorConfig{
		Tracker:     tracker,
		Source:      s.cfg.LocationSource,
		Permissions: s.cfg.Permissions,
		Options:     s.cfg.SubscribeOptions,
		Logger:      s.logger,
	})
	s.result = res
	s.loadErr = nil
	s.tracker = tracker
	s.monitor = monitor
	s.arrivals = nil
	s.mu.Unlock()

	s.logger.Info().
		Str("source", string(res.Source)).
		Int("waypoints", len(res.Route.Waypoints)).
		Msg("route loaded")
	s.observer.RouteLoaded(res)

	err = monitor.Start(ctx, s.onArrival(gen), s.observer.PermissionDenied)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, proximity.ErrPermissionDenied):
		return nil
	case errors.Is(err, proximity.ErrNotIdle):
		// Closed or refreshed between install and start.
		return ErrSuperseded
	default:
		s.logger.Error().Err(err).Msg("failed to start proximity monitor")
		return err
	}
}

func (s *Session) onArrival(gen uint64) func(arrival.Event) {
	return func(ev arrival.Event) {
		s.mu.Lock()
		if gen != s.gen || s.closed {
			s.mu.Unlock()
			return
		}
		s.arrivals = append(s.arrivals, ev)
		s.mu.Unlock()

		s.observer.ArrivalOccurred(ev)
	}
}

// SimulateArrival marks the next waypoint arrived without a location fix.
// It returns false once every waypoint has been arrived at.
func (s *Session) SimulateArrival() (arrival.Event, bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return arrival.Event{}, false, ErrClosed
	}
	monitor := s.monitor
	s.mu.Unlock()

	if monitor == nil {
		return arrival.Event{}, false, ErrNotLoaded
	}

	ev, ok := monitor.SimulateArrival()
	return ev, ok, nil
}

// Route returns the loaded route, or nil.
func (s *Session) Route() *tour.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	return s.result.Route
}

// Result returns the last successful load, or nil.
func (s *Session) Result() *routecache.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err returns the error of the last load, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Arrivals returns the arrivals of the current load in the order they occurred.
func (s *Session) Arrivals() []arrival.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]arrival.Event, len(s.arrivals))
	copy(out, s.arrivals)
	return out
}

// Progress returns the per-waypoint arrival state, or nil before a route is loaded.
func (s *Session) Progress() []arrival.WaypointState {
	s.mu.Lock()
	tracker := s.tracker
	s.mu.Unlock()
	if tracker == nil {
		return nil
	}
	return tracker.State()
}

// Completed reports whether every waypoint of the loaded route has been reached.
func (s *Session) Completed() bool {
	s.mu.Lock()
	tracker := s.tracker
	s.mu.Unlock()
	return tracker != nil && tracker.Completed()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops the monitor and releases the location subscription. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	monitor := s.monitor
	s.monitor = nil
	stopWatch := s.stopWatch
	s.stopWatch = nil
	s.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	if monitor != nil {
		monitor.Stop()
	}
	s.logger.Debug().Msg("session closed")
}
