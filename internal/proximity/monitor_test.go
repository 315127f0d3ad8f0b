package proximity_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointwalk/waypointwalk/internal/arrival"
	"github.com/waypointwalk/waypointwalk/internal/geo"
	"github.com/waypointwalk/waypointwalk/internal/proximity"
	"github.com/waypointwalk/waypointwalk/internal/tour"
)

// gatedSource delivers samples from a goroutine that waits on a gate,
// so a sample can be in flight while the monitor is stopped.
type gatedSource struct {
	gate        chan struct{}
	sample      proximity.Sample
	delivered   chan struct{}
	cancelCount atomic.Int32
	opts        proximity.SubscribeOptions
}

func newGatedSource(s proximity.Sample) *gatedSource {
	return &gatedSource{gate: make(chan struct{}), sample: s, delivered: make(chan struct{})}
}

func (g *gatedSource) Subscribe(_ context.Context, opts proximity.SubscribeOptions, onSample func(proximity.Sample)) (proximity.Subscription, error) {
	g.opts = opts
	go func() {
		<-g.gate
		onSample(g.sample)
		close(g.delivered)
	}()
	return subscriptionFunc(func() { g.cancelCount.Add(1) }), nil
}

type subscriptionFunc func()

func (f subscriptionFunc) Cancel() { f() }

type eventRecorder struct {
	mu     sync.Mutex
	events []arrival.Event
}

func (r *eventRecorder) record(ev arrival.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) all() []arrival.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]arrival.Event, len(r.events))
	copy(out, r.events)
	return out
}

func twoWaypointRoute() *tour.Route {
	return &tour.Route{
		ID:   "e2e",
		Name: "Equator stroll",
		Waypoints: []tour.Waypoint{
			{Name: "W0", Location: geo.Coordinate{Lat: 0, Lon: 0}},
			{Name: "W1", Location: geo.Coordinate{Lat: 0, Lon: 0.001}},
		},
	}
}

func newMonitor(source proximity.LocationSource, perms proximity.PermissionRequester) *proximity.Monitor {
	return proximity.NewMonitor(proximity.MonitorConfig{
		Tracker:     arrival.NewTracker(twoWaypointRoute()),
		Source:      source,
		Permissions: perms,
		Logger:      zerolog.New(io.Discard),
	})
}

func sampleAt(lat, lon float64) proximity.Sample {
	return proximity.Sample{Location: geo.Coordinate{Lat: lat, Lon: lon}, Timestamp: time.Now()}
}

func TestMonitor_DeliversArrivals(t *testing.T) {
	feed := proximity.NewFeedSource()
	m := newMonitor(feed, nil)
	rec := &eventRecorder{}

	require.NoError(t, m.Start(context.Background(), rec.record, nil))
	assert.Equal(t, proximity.StateWatching, m.State())

	feed.Push(sampleAt(0, 0.00005))
	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, "W0", events[0].Waypoint.Name)

	feed.Push(sampleAt(0, 0.00005))
	assert.Len(t, rec.all(), 1, "repeat sample does not re-alert")

	feed.Push(sampleAt(0, 0.00095))
	events = rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, "W1", events[1].Waypoint.Name)

	m.Stop()
}

func TestMonitor_StopImmediatelyAfterStartDropsInFlightSample(t *testing.T) {
	src := newGatedSource(sampleAt(0, 0))
	m := newMonitor(src, nil)

	var delivered atomic.Int32
	require.NoError(t, m.Start(context.Background(), func(arrival.Event) { delivered.Add(1) }, nil))
	m.Stop()

	close(src.gate)
	select {
	case <-src.delivered:
	case <-time.After(time.Second):
		t.Fatal("sample was never delivered to the monitor")
	}

	assert.Zero(t, delivered.Load())
	assert.Equal(t, int32(1), src.cancelCount.Load())
	assert.Equal(t, proximity.StateStopped, m.State())
}

func TestMonitor_StopIsIdempotent(t *testing.T) {
	src := newGatedSource(sampleAt(0, 0))
	m := newMonitor(src, nil)

	m.Stop() // from idle
	assert.Equal(t, proximity.StateStopped, m.State())
	assert.ErrorIs(t, m.Start(context.Background(), nil, nil), proximity.ErrNotIdle)

	m2 := newMonitor(src, nil)
	require.NoError(t, m2.Start(context.Background(), nil, nil))
	m2.Stop()
	m2.Stop()
	m2.Stop()
	assert.Equal(t, int32(1), src.cancelCount.Load(), "subscription cancelled exactly once")
}

func TestMonitor_StartTwice(t *testing.T) {
	m := newMonitor(proximity.NewFeedSource(), nil)
	require.NoError(t, m.Start(context.Background(), nil, nil))
	assert.ErrorIs(t, m.Start(context.Background(), nil, nil), proximity.ErrNotIdle)
	m.Stop()
}

func TestMonitor_PermissionDenied(t *testing.T) {
	feed := proximity.NewFeedSource()
	denied := proximity.PermissionFunc(func(context.Context) (proximity.PermissionResult, error) {
		return proximity.PermissionDenied, nil
	})
	m := newMonitor(feed, denied)

	var deniedCalls atomic.Int32
	err := m.Start(context.Background(), nil, func() { deniedCalls.Add(1) })

	assert.ErrorIs(t, err, proximity.ErrPermissionDenied)
	assert.Equal(t, int32(1), deniedCalls.Load())
	assert.Equal(t, proximity.StateUnavailable, m.State())
	assert.Zero(t, feed.Subscribers(), "no subscription when permission is denied")

	m.Stop()
	assert.Equal(t, proximity.StateUnavailable, m.State())
}

func TestMonitor_PermissionRequestError(t *testing.T) {
	boom := errors.New("platform unavailable")
	failing := proximity.PermissionFunc(func(context.Context) (proximity.PermissionResult, error) {
		return "", boom
	})
	m := newMonitor(proximity.NewFeedSource(), failing)

	err := m.Start(context.Background(), nil, nil)
	assert.ErrorIs(t, err, proximity.ErrPermissionDenied)
	assert.ErrorIs(t, err, boom)
}

func TestMonitor_StopDuringPermissionRequest(t *testing.T) {
	feed := proximity.NewFeedSource()
	asked := make(chan struct{})
	release := make(chan struct{})
	slow := proximity.PermissionFunc(func(context.Context) (proximity.PermissionResult, error) {
		close(asked)
		<-release
		return proximity.PermissionGranted, nil
	})
	m := newMonitor(feed, slow)

	errCh := make(chan error, 1)
	go func() { errCh <- m.Start(context.Background(), nil, nil) }()

	<-asked
	m.Stop()
	close(release)

	require.NoError(t, <-errCh)
	assert.Zero(t, feed.Subscribers())
	assert.Equal(t, proximity.StateStopped, m.State())
}

func TestMonitor_SubscribeError(t *testing.T) {
	boom := errors.New("gps off")
	src := sourceFunc(func(context.Context, proximity.SubscribeOptions, func(proximity.Sample)) (proximity.Subscription, error) {
		return nil, boom
	})
	m := newMonitor(src, nil)

	assert.ErrorIs(t, m.Start(context.Background(), nil, nil), boom)
	assert.Equal(t, proximity.StateUnavailable, m.State())
}

func TestMonitor_DefaultSubscribeOptions(t *testing.T) {
	src := newGatedSource(sampleAt(0, 0))
	m := newMonitor(src, nil)

	require.NoError(t, m.Start(context.Background(), nil, nil))
	defer m.Stop()

	assert.Equal(t, proximity.DefaultSubscribeOptions(), src.opts)
}

func TestMonitor_SimulateArrival(t *testing.T) {
	m := newMonitor(proximity.NewFeedSource(), nil)
	rec := &eventRecorder{}
	require.NoError(t, m.Start(context.Background(), rec.record, nil))

	ev, ok := m.SimulateArrival()
	require.True(t, ok)
	assert.Equal(t, 0, ev.WaypointIndex)
	assert.Equal(t, arrival.TriggerManual, ev.Trigger)

	_, ok = m.SimulateArrival()
	require.True(t, ok)

	_, ok = m.SimulateArrival()
	assert.False(t, ok, "all waypoints have been arrived at")

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[1].WaypointIndex)

	m.Stop()
	_, ok = m.SimulateArrival()
	assert.False(t, ok)
}

type sourceFunc func(context.Context, proximity.SubscribeOptions, func(proximity.Sample)) (proximity.Subscription, error)

func (f sourceFunc) Subscribe(ctx context.Context, opts proximity.SubscribeOptions, onSample func(proximity.Sample)) (proximity.Subscription, error) {
	return f(ctx, opts, onSample)
}
