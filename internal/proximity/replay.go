package proximity

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/waypointwalk/waypointwalk/internal/geo"
)

// Track is a recorded walk.
//
//	interval: 1s
//	samples:
//	  - latitude: 52.2297
//	    longitude: 21.0122
//	    accuracy: 8
//	  - latitude: 52.2301
//	    longitude: 21.0125
//	    pause: 5s
type Track struct {
	// Interval is the delay between samples when a sample sets no pause.
	Interval time.Duration `yaml:"interval"`
	Samples  []TrackPoint  `yaml:"samples"`
}

// TrackPoint is one recorded position.
type TrackPoint struct {
	Latitude  float64       `yaml:"latitude"`
	Longitude float64       `yaml:"longitude"`
	Accuracy  *float64      `yaml:"accuracy,omitempty"`
	At        *time.Time    `yaml:"at,omitempty"`
	Pause     time.Duration `yaml:"pause,omitempty"`
}

// LoadTrack decodes a YAML track and validates every coordinate.
func LoadTrack(r io.Reader) (*Track, error) {
	var t Track
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode track: %w", err)
	}
	for i, p := range t.Samples {
		c := geo.Coordinate{Lat: p.Latitude, Lon: p.Longitude}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("track sample %d: %w", i, err)
		}
	}
	return &t, nil
}

// LoadTrackFile reads a YAML track from path.
func LoadTrackFile(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadTrack(f)
}

// ReplaySource replays a Track as a LocationSource. Samples closer than the
// subscription's MinDistanceMeters to the last delivered one are skipped.
type ReplaySource struct {
	track *Track
	now   func() time.Time

	mu   sync.Mutex
	done chan struct{}
}

// NewReplaySource creates a source for track.
func NewReplaySource(track *Track) *ReplaySource {
	return &ReplaySource{track: track, now: time.Now, done: make(chan struct{})}
}

// Done is closed when the most recent subscription finished replaying or was cancelled.
func (r *ReplaySource) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Subscribe starts replaying in a new goroutine.
func (r *ReplaySource) Subscribe(ctx context.Context, opts SubscribeOptions, onSample func(Sample)) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	r.mu.Lock()
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		r.replay(ctx, opts, onSample)
	}()

	return &replaySubscription{cancel: cancel}, nil
}

func (r *ReplaySource) replay(ctx context.Context, opts SubscribeOptions, onSample func(Sample)) {
	var last *geo.Coordinate
	for i, p := range r.track.Samples {
		if i > 0 {
			wait := r.track.Interval
			if p.Pause > 0 {
				wait = p.Pause
			}
			if !sleep(ctx, wait) {
				return
			}
		} else if ctx.Err() != nil {
			return
		}

		loc := geo.Coordinate{Lat: p.Latitude, Lon: p.Longitude}
		if last != nil && geo.DistanceMeters(*last, loc) < opts.MinDistanceMeters {
			continue
		}
		last = &loc

		ts := r.now()
		if p.At != nil {
			ts = *p.At
		}
		onSample(Sample{Location: loc, Timestamp: ts, Accuracy: p.Accuracy})
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type replaySubscription struct {
	cancel context.CancelFunc
}

func (s *replaySubscription) Cancel() {
	s.cancel()
}
