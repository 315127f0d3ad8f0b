// Package proximity bridges a live location stream into an arrival tracker.
package proximity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/arrival"
)

var (
	// ErrPermissionDenied is returned by Start when location access was refused.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrNotIdle is returned by Start on a monitor that was already started.
	ErrNotIdle = errors.New("monitor already started")
)

// State is the lifecycle state of a Monitor.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateWatching
	StateStopped
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateWatching:
		return "watching"
	case StateStopped:
		return "stopped"
	case StateUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MonitorConfig holds configuration for a Monitor.
type MonitorConfig struct {
	Tracker     *arrival.Tracker
	Source      LocationSource
	Permissions PermissionRequester

	// Options for the location subscription. Zero values take the defaults.
	Options SubscribeOptions

	Logger zerolog.Logger
}

// Monitor owns one location subscription and feeds every sample to the tracker.
//
// Samples are processed under the monitor lock, so once Stop returns no further
// event is delivered. Callbacks run under that lock and must not call Stop.
type Monitor struct {
	tracker     *arrival.Tracker
	source      LocationSource
	permissions PermissionRequester
	opts        SubscribeOptions
	logger      zerolog.Logger

	mu      sync.Mutex
	state   State
	sub     Subscription
	onEvent func(arrival.Event)
}

// NewMonitor creates an idle monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	opts := cfg.Options
	if opts.Accuracy == "" {
		opts.Accuracy = AccuracyHigh
	}
	if opts.MinDistanceMeters <= 0 {
		opts.MinDistanceMeters = DefaultMinDistanceMeters
	}

	permissions := cfg.Permissions
	if permissions == nil {
		permissions = AlwaysGranted
	}

	return &Monitor{
		tracker:     cfg.Tracker,
		source:      cfg.Source,
		permissions: permissions,
		opts:        opts,
		logger:      cfg.Logger,
	}
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start requests location permission and subscribes to the location source.
// On denial the monitor becomes unavailable, onPermissionDenied is called and
// ErrPermissionDenied is returned. If Stop is called while Start is in progress
// Start returns nil without leaving a subscription behind.
func (m *Monitor) Start(ctx context.Context, onEvent func(arrival.Event), onPermissionDenied func()) error {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrNotIdle
	}
	m.state = StateStarting
	m.onEvent = onEvent
	m.mu.Unlock()

	result, err := m.permissions.RequestLocationPermission(ctx)
	if err != nil || result != PermissionGranted {
		m.mu.Lock()
		stopped := m.state == StateStopped
		if !stopped {
			m.state = StateUnavailable
		}
		m.mu.Unlock()

		if stopped {
			return nil
		}

		m.logger.Warn().Err(err).Str("result", string(result)).Msg("location permission not granted")
		if onPermissionDenied != nil {
			onPermissionDenied()
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		return ErrPermissionDenied
	}

	m.mu.Lock()
	if m.state == StateStopped {
		m.mu.Unlock()
		return nil
	}
	m.state = StateWatching
	m.mu.Unlock()

	// Subscribe runs unlocked: sources may deliver the first sample synchronously.
	sub, err := m.source.Subscribe(ctx, m.opts, m.handleSample)
	if err != nil {
		m.mu.Lock()
		if m.state == StateWatching {
			m.state = StateUnavailable
		}
		m.mu.Unlock()
		m.logger.Error().Err(err).Msg("failed to subscribe to location updates")
		return fmt.Errorf("subscribe to location: %w", err)
	}

	once := &onceSubscription{sub: sub}

	m.mu.Lock()
	if m.state != StateWatching {
		m.mu.Unlock()
		once.Cancel()
		return nil
	}
	m.sub = once
	m.mu.Unlock()

	m.logger.Debug().
		Str("accuracy", string(m.opts.Accuracy)).
		Float64("min_distance_m", m.opts.MinDistanceMeters).
		Msg("watching location")
	return nil
}

// Stop cancels the subscription. It is safe to call from any state and more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	if m.state != StateUnavailable {
		m.state = StateStopped
	}
	m.onEvent = nil
	m.mu.Unlock()

	if sub != nil {
		sub.Cancel()
		m.logger.Debug().Msg("stopped watching location")
	}
}

// SimulateArrival marks the next waypoint arrived without a location fix and
// publishes the event like a real arrival. It returns false once every waypoint
// is arrived or the monitor is stopped.
func (m *Monitor) SimulateArrival() (arrival.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateStopped {
		return arrival.Event{}, false
	}

	ev, ok := m.tracker.ManualArrive()
	if !ok {
		return arrival.Event{}, false
	}
	m.publishLocked(ev)
	return ev, true
}

func (m *Monitor) handleSample(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateWatching {
		return
	}

	for _, ev := range m.tracker.Check(s.Location, s.Timestamp) {
		m.publishLocked(ev)
	}
}

func (m *Monitor) publishLocked(ev arrival.Event) {
	m.logger.Info().
		Int("waypoint_index", ev.WaypointIndex).
		Str("waypoint", ev.Waypoint.Name).
		Str("trigger", string(ev.Trigger)).
		Float64("distance_m", ev.DistanceMeters).
		Msg("waypoint arrived")

	if m.onEvent != nil {
		m.onEvent(ev)
	}
}

// onceSubscription guarantees the underlying subscription is cancelled exactly once.
type onceSubscription struct {
	once sync.Once
	sub  Subscription
}

func (s *onceSubscription) Cancel() {
	s.once.Do(s.sub.Cancel)
}
