package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/arrival"
	"github.com/waypointwalk/waypointwalk/internal/notify"
	"github.com/waypointwalk/waypointwalk/internal/proximity"
	"github.com/waypointwalk/waypointwalk/internal/routecache"
	"github.com/waypointwalk/waypointwalk/internal/telemetry"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// DefaultIdleTimeout closes remote sessions that received no request for this long.
const DefaultIdleTimeout = 2 * time.Hour

// ManagerConfig holds configuration for the remote session manager.
type ManagerConfig struct {
	Policy       *routecache.Policy
	Fetcher      routecache.Fetcher
	Reachability Reachability
	Notifier     notify.Notifier
	Metrics      *telemetry.SessionMetrics

	// Threshold is the arrival radius in meters. Default: 50.
	Threshold float64

	// Thresholds, when set, supplies the radius for each new session
	// and takes precedence over Threshold.
	Thresholds ThresholdSource

	// IdleTimeout closes sessions without activity. Default: 2h.
	IdleTimeout time.Duration

	Logger zerolog.Logger
}

// ThresholdSource supplies the arrival radius at session creation.
type ThresholdSource interface {
	ArrivalThreshold(ctx context.Context) float64
}

// Manager runs sessions for devices that stream their positions to the server.
// Each session reads from its own FeedSource; location permission is implied.
type Manager struct {
	cfg      ManagerConfig
	sessions *gocache.Cache
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// Remote is a server-side session driven by pushed positions.
type Remote struct {
	ID        string
	RouteID   string
	CreatedAt time.Time

	session *Session
	feed    *proximity.FeedSource
	cancel  context.CancelFunc

	// pushMu serializes pushes so each caller sees exactly its own arrivals.
	pushMu    sync.Mutex
	closeOnce sync.Once
}

// Session returns the underlying session.
func (r *Remote) Session() *Session {
	return r.session
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}

	cleanup := cfg.IdleTimeout / 4
	if cleanup < time.Second {
		cleanup = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:      cfg,
		sessions: gocache.New(cfg.IdleTimeout, cleanup),
		logger:   cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	m.sessions.OnEvicted(func(_ string, v interface{}) {
		m.release(v.(*Remote))
	})
	return m
}

// Create starts a session for routeID. The route is loaded before Create returns.
func (m *Manager) Create(routeID string) (*Remote, error) {
	id := uuid.NewString()
	sessCtx, cancel := context.WithCancel(m.ctx)

	threshold := m.cfg.Threshold
	if m.cfg.Thresholds != nil {
		if t := m.cfg.Thresholds.ArrivalThreshold(sessCtx); t > 0 {
			threshold = t
		}
	}

	remote := &Remote{
		ID:        id,
		RouteID:   routeID,
		CreatedAt: time.Now().UTC(),
		feed:      proximity.NewFeedSource(),
		cancel:    cancel,
	}
	remote.session = New(Config{
		RouteID:        routeID,
		Policy:         m.cfg.Policy,
		Fetcher:        m.cfg.Fetcher,
		Reachability:   m.cfg.Reachability,
		LocationSource: remote.feed,
		Permissions:    proximity.AlwaysGranted,
		Observer:       m.observer(routeID),
		Threshold:      threshold,
		Logger:         m.logger.With().Str("session_id", id).Logger(),
	})

	if err := remote.session.Start(sessCtx); err != nil {
		remote.session.Close()
		cancel()
		return nil, err
	}

	m.sessions.SetDefault(id, remote)
	m.cfg.Metrics.SessionOpened(m.ctx)

	m.logger.Info().
		Str("session_id", id).
		Str("route_id", routeID).
		Msg("session created")
	return remote, nil
}

// Get returns a session and extends its idle deadline.
func (m *Manager) Get(id string) (*Remote, error) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	remote := v.(*Remote)
	m.sessions.SetDefault(id, remote)
	return remote, nil
}

// Push feeds one position into the session and returns the arrivals it caused.
func (m *Manager) Push(ctx context.Context, id string, sample proximity.Sample) ([]arrival.Event, error) {
	remote, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}

	remote.pushMu.Lock()
	defer remote.pushMu.Unlock()

	before := len(remote.session.Arrivals())
	remote.feed.Push(sample)
	after := remote.session.Arrivals()

	var events []arrival.Event
	if before <= len(after) {
		events = after[before:]
	} else {
		events = after
	}

	m.dispatch(ctx, remote, events...)
	return events, nil
}

// SimulateArrival arrives the next waypoint of a session manually.
func (m *Manager) SimulateArrival(ctx context.Context, id string) (arrival.Event, bool, error) {
	remote, err := m.Get(id)
	if err != nil {
		return arrival.Event{}, false, err
	}

	remote.pushMu.Lock()
	defer remote.pushMu.Unlock()

	ev, ok, err := remote.session.SimulateArrival()
	if err != nil || !ok {
		return ev, ok, err
	}
	m.dispatch(ctx, remote, ev)
	return ev, true, nil
}

// Close ends a session.
func (m *Manager) Close(id string) error {
	if _, ok := m.sessions.Get(id); !ok {
		return ErrSessionNotFound
	}
	m.sessions.Delete(id)
	return nil
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	for id := range m.sessions.Items() {
		m.sessions.Delete(id)
	}
	m.cancel()
}

func (m *Manager) release(r *Remote) {
	r.closeOnce.Do(func() {
		r.session.Close()
		r.cancel()
		m.cfg.Metrics.SessionClosed(context.Background())
		m.logger.Info().Str("session_id", r.ID).Msg("session closed")
	})
}

func (m *Manager) dispatch(ctx context.Context, r *Remote, events ...arrival.Event) {
	for _, ev := range events {
		if err := m.cfg.Notifier.Notify(ctx, notify.ArrivalNotification(r.RouteID, r.ID, ev)); err != nil {
			m.logger.Error().
				Err(err).
				Str("session_id", r.ID).
				Int("waypoint_index", ev.WaypointIndex).
				Msg("failed to deliver arrival notification")
		}
	}
}

func (m *Manager) observer(routeID string) Observer {
	return ObserverFuncs{
		OnRouteLoaded: func(res *routecache.Result) {
			m.cfg.Metrics.RecordLoad(m.ctx, routeID, string(res.Source), nil)
		},
		OnRouteLoadFailed: func(err error) {
			m.cfg.Metrics.RecordLoad(m.ctx, routeID, "", err)
		},
		OnArrival: func(ev arrival.Event) {
			m.cfg.Metrics.RecordArrival(m.ctx, routeID, string(ev.Trigger))
		},
	}
}
