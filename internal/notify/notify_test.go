package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointwalk/waypointwalk/internal/arrival"
	"github.com/waypointwalk/waypointwalk/internal/notify"
	"github.com/waypointwalk/waypointwalk/internal/tour"
)

type fakePublisher struct {
	data  []byte
	attrs map[string]string
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, data []byte, attrs map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.data = data
	f.attrs = attrs
	return "msg-1", nil
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Notify(context.Context, notify.Notification) error {
	c.calls++
	return c.err
}

func sampleEvent() arrival.Event {
	return arrival.Event{
		WaypointIndex: 1,
		Waypoint:      tour.Waypoint{Name: "Barbican", Description: "Fortified outpost"},
		ArrivedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Trigger:       arrival.TriggerProximity,
	}
}

func TestArrivalNotification(t *testing.T) {
	n := notify.ArrivalNotification("old-town", "s-1", sampleEvent())

	assert.Equal(t, "Arrived at Barbican", n.Title)
	assert.Equal(t, "Fortified outpost", n.Body)
	assert.Equal(t, 1, n.WaypointIndex)
	assert.Equal(t, "proximity", n.Trigger)
	assert.Equal(t, "s-1", n.SessionID)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewLogNotifier(zerolog.New(&buf))

	require.NoError(t, n.Notify(context.Background(), notify.ArrivalNotification("old-town", "", sampleEvent())))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Arrived at Barbican", entry["message"])
	assert.Equal(t, "old-town", entry["route_id"])
	assert.EqualValues(t, 1, entry["waypoint_index"])
}

func TestPubSubNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := notify.NewPubSubNotifier(pub, zerolog.New(io.Discard))

	require.NoError(t, n.Notify(context.Background(), notify.ArrivalNotification("old-town", "s-1", sampleEvent())))

	assert.Equal(t, map[string]string{"route_id": "old-town", "waypoint_index": "1"}, pub.attrs)

	var decoded notify.Notification
	require.NoError(t, json.Unmarshal(pub.data, &decoded))
	assert.Equal(t, "Arrived at Barbican", decoded.Title)
	assert.Equal(t, "s-1", decoded.SessionID)
}

func TestPubSubNotifier_PublishError(t *testing.T) {
	boom := errors.New("topic not found")
	n := notify.NewPubSubNotifier(&fakePublisher{err: boom}, zerolog.New(io.Discard))

	assert.ErrorIs(t, n.Notify(context.Background(), notify.Notification{}), boom)
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	a := &countingNotifier{}
	b := &countingNotifier{err: boom}
	c := &countingNotifier{}

	err := notify.Multi{a, nil, b, c}.Notify(context.Background(), notify.Notification{})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls, "later notifiers still run after a failure")
}

func TestGate(t *testing.T) {
	inner := &countingNotifier{}
	open := true
	gate := notify.Gate{
		Notifier: inner,
		Enabled:  func(context.Context) bool { return open },
	}

	require.NoError(t, gate.Notify(context.Background(), notify.Notification{}))
	open = false
	require.NoError(t, gate.Notify(context.Background(), notify.Notification{}))

	assert.Equal(t, 1, inner.calls)
}
