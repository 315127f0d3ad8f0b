// Package arrival tracks which waypoints of a route a walker has reached.
package arrival

import (
	"sync"
	"time"

	"github.com/waypointwalk/waypointwalk/internal/geo"
	"github.com/waypointwalk/waypointwalk/internal/tour"
)

// DefaultThresholdMeters is the arrival radius around a waypoint.
const DefaultThresholdMeters = 50.0

// Trigger describes what caused an arrival.
type Trigger string

const (
	TriggerProximity Trigger = "proximity"
	TriggerManual    Trigger = "manual"
)

// Event is emitted once per waypoint when it flips to arrived.
type Event struct {
	WaypointIndex int
	Waypoint      tour.Waypoint
	ArrivedAt     time.Time
	Trigger       Trigger
	// DistanceMeters is the sample distance for proximity arrivals; zero for manual ones.
	DistanceMeters float64
}

// WaypointState is the arrival state of a single waypoint.
type WaypointState struct {
	Arrived   bool
	ArrivedAt *time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithThreshold sets the radius used by Check.
func WithThreshold(meters float64) Option {
	return func(t *Tracker) {
		if meters > 0 {
			t.threshold = meters
		}
	}
}

// WithClock sets the wall clock used for manual arrivals.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// Tracker holds per-waypoint arrival flags for one route.
// Flags only ever go from false to true. All methods are safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	waypoints []tour.Waypoint
	state     []WaypointState
	threshold float64
	now       func() time.Time
}

// NewTracker creates a tracker with every waypoint of route not yet arrived.
func NewTracker(route *tour.Route, opts ...Option) *Tracker {
	var waypoints []tour.Waypoint
	if route != nil {
		waypoints = make([]tour.Waypoint, len(route.Waypoints))
		copy(waypoints, route.Waypoints)
	}

	t := &Tracker{
		waypoints: waypoints,
		state:     make([]WaypointState, len(waypoints)),
		threshold: DefaultThresholdMeters,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Threshold returns the configured arrival radius in meters.
func (t *Tracker) Threshold() float64 {
	return t.threshold
}

// Check runs CheckProximity with the configured threshold.
func (t *Tracker) Check(location geo.Coordinate, at time.Time) []Event {
	return t.CheckProximity(location, at, t.threshold)
}

// CheckProximity marks every not-yet-arrived waypoint closer than thresholdMeters
// to location as arrived at time at. Events are returned in waypoint order.
// Waypoints already arrived are skipped, so repeated samples never re-emit.
func (t *Tracker) CheckProximity(location geo.Coordinate, at time.Time, thresholdMeters float64) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []Event
	for i, wp := range t.waypoints {
		if t.state[i].Arrived {
			continue
		}

		d := geo.DistanceMeters(location, wp.Location)
		if d >= thresholdMeters {
			continue
		}

		events = append(events, t.markLocked(i, at, TriggerProximity, d))
	}
	return events
}

// ManualArrive marks the lowest-index waypoint not yet arrived as arrived now.
// It returns false when every waypoint has been arrived at.
func (t *Tracker) ManualArrive() (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.waypoints {
		if !t.state[i].Arrived {
			return t.markLocked(i, t.now(), TriggerManual, 0), true
		}
	}
	return Event{}, false
}

func (t *Tracker) markLocked(i int, at time.Time, trigger Trigger, distance float64) Event {
	arrivedAt := at
	t.state[i] = WaypointState{Arrived: true, ArrivedAt: &arrivedAt}
	return Event{
		WaypointIndex:  i,
		Waypoint:       t.waypoints[i],
		ArrivedAt:      at,
		Trigger:        trigger,
		DistanceMeters: distance,
	}
}

// State returns a snapshot of the arrival state indexed by waypoint.
func (t *Tracker) State() []WaypointState {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]WaypointState, len(t.state))
	for i, s := range t.state {
		out[i].Arrived = s.Arrived
		if s.ArrivedAt != nil {
			at := *s.ArrivedAt
			out[i].ArrivedAt = &at
		}
	}
	return out
}

// Remaining returns the number of waypoints not yet arrived.
func (t *Tracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, s := range t.state {
		if !s.Arrived {
			n++
		}
	}
	return n
}

// Completed reports whether every waypoint has been arrived at.
func (t *Tracker) Completed() bool {
	return t.Remaining() == 0
}
