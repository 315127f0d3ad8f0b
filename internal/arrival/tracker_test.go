package arrival_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointwalk/waypointwalk/internal/arrival"
	"github.com/waypointwalk/waypointwalk/internal/geo"
	"github.com/waypointwalk/waypointwalk/internal/tour"
)

func routeWith(points ...geo.Coordinate) *tour.Route {
	r := &tour.Route{ID: "test", Name: "Test"}
	for i, p := range points {
		r.Waypoints = append(r.Waypoints, tour.Waypoint{
			Name:     string(rune('A' + i)),
			Location: p,
		})
	}
	return r
}

// about 10 m north of (10,10)
var tenMetersAway = geo.Coordinate{Lat: 10.00009, Lon: 10}

func TestCheckProximity_Idempotent(t *testing.T) {
	tracker := arrival.NewTracker(routeWith(geo.Coordinate{Lat: 10, Lon: 10}))
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.InDelta(t, 10.0, geo.DistanceMeters(tenMetersAway, geo.Coordinate{Lat: 10, Lon: 10}), 0.5)

	first := tracker.CheckProximity(tenMetersAway, t0, 50)
	second := tracker.CheckProximity(tenMetersAway, t0.Add(time.Second), 50)

	require.Len(t, first, 1)
	assert.Empty(t, second)
	assert.Equal(t, 0, first[0].WaypointIndex)
	assert.Equal(t, t0, first[0].ArrivedAt)
	assert.Equal(t, arrival.TriggerProximity, first[0].Trigger)

	state := tracker.State()
	require.Len(t, state, 1)
	assert.True(t, state[0].Arrived)
	require.NotNil(t, state[0].ArrivedAt)
	assert.Equal(t, t0, *state[0].ArrivedAt, "arrival time is not overwritten")
}

func TestCheckProximity_MultipleInAscendingOrder(t *testing.T) {
	tracker := arrival.NewTracker(routeWith(
		geo.Coordinate{Lat: 10, Lon: 10},
		geo.Coordinate{Lat: 20, Lon: 20},
		geo.Coordinate{Lat: 10.0001, Lon: 10},
	))

	events := tracker.CheckProximity(tenMetersAway, time.Now(), 50)

	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].WaypointIndex)
	assert.Equal(t, 2, events[1].WaypointIndex)
	assert.Equal(t, 1, tracker.Remaining())
}

func TestCheckProximity_ThresholdIsStrict(t *testing.T) {
	wp := geo.Coordinate{Lat: 10, Lon: 10}
	d := geo.DistanceMeters(tenMetersAway, wp)

	tracker := arrival.NewTracker(routeWith(wp))
	assert.Empty(t, tracker.CheckProximity(tenMetersAway, time.Now(), d), "distance equal to threshold does not arrive")
	assert.Len(t, tracker.CheckProximity(tenMetersAway, time.Now(), d+0.001), 1)
}

func TestCheck_UsesConfiguredThreshold(t *testing.T) {
	wp := geo.Coordinate{Lat: 10, Lon: 10}

	tracker := arrival.NewTracker(routeWith(wp), arrival.WithThreshold(5))
	assert.Equal(t, 5.0, tracker.Threshold())
	assert.Empty(t, tracker.Check(tenMetersAway, time.Now()))

	tracker = arrival.NewTracker(routeWith(wp))
	assert.Equal(t, arrival.DefaultThresholdMeters, tracker.Threshold())
	assert.Len(t, tracker.Check(tenMetersAway, time.Now()), 1)
}

func TestManualArrive_InIndexOrder(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	tracker := arrival.NewTracker(routeWith(
		geo.Coordinate{Lat: 1, Lon: 1},
		geo.Coordinate{Lat: 2, Lon: 2},
		geo.Coordinate{Lat: 3, Lon: 3},
	), arrival.WithClock(func() time.Time { return now }))

	for i := 0; i < 3; i++ {
		ev, ok := tracker.ManualArrive()
		require.True(t, ok)
		assert.Equal(t, i, ev.WaypointIndex)
		assert.Equal(t, now, ev.ArrivedAt)
		assert.Equal(t, arrival.TriggerManual, ev.Trigger)
	}

	_, ok := tracker.ManualArrive()
	assert.False(t, ok)
	assert.True(t, tracker.Completed())
}

func TestManualArrive_SkipsProximityArrivals(t *testing.T) {
	tracker := arrival.NewTracker(routeWith(
		geo.Coordinate{Lat: 10, Lon: 10},
		geo.Coordinate{Lat: 20, Lon: 20},
	))
	require.Len(t, tracker.Check(tenMetersAway, time.Now()), 1)

	ev, ok := tracker.ManualArrive()
	require.True(t, ok)
	assert.Equal(t, 1, ev.WaypointIndex)
}

func TestTracker_EmptyRoute(t *testing.T) {
	tracker := arrival.NewTracker(&tour.Route{ID: "empty"})

	assert.Empty(t, tracker.Check(geo.Coordinate{}, time.Now()))
	_, ok := tracker.ManualArrive()
	assert.False(t, ok)
	assert.True(t, tracker.Completed())
}

func TestTracker_ConcurrentArrivalsEmitOnce(t *testing.T) {
	tracker := arrival.NewTracker(routeWith(geo.Coordinate{Lat: 10, Lon: 10}))

	var (
		mu    sync.Mutex
		total int
		wg    sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			n := len(tracker.Check(tenMetersAway, time.Now()))
			mu.Lock()
			total += n
			mu.Unlock()
		}()
		go func() {
			defer wg.Done()
			if _, ok := tracker.ManualArrive(); ok {
				mu.Lock()
				total++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, total)
}

func TestTracker_EndToEndScenario(t *testing.T) {
	tracker := arrival.NewTracker(routeWith(
		geo.Coordinate{Lat: 0, Lon: 0},
		geo.Coordinate{Lat: 0, Lon: 0.001},
	))

	first := tracker.Check(geo.Coordinate{Lat: 0, Lon: 0.00005}, time.Now())
	require.Len(t, first, 1)
	assert.Equal(t, 0, first[0].WaypointIndex)

	second := tracker.Check(geo.Coordinate{Lat: 0, Lon: 0.00095}, time.Now())
	require.Len(t, second, 1)
	assert.Equal(t, 1, second[0].WaypointIndex)
}
