// Package notify delivers waypoint arrival alerts.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/arrival"
)

// Notification is a user-facing arrival alert.
type Notification struct {
	RouteID       string    `json:"route_id"`
	SessionID     string    `json:"session_id,omitempty"`
	WaypointIndex int       `json:"waypoint_index"`
	WaypointName  string    `json:"waypoint_name"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	Trigger       string    `json:"trigger"`
	ArrivedAt     time.Time `json:"arrived_at"`
}

// ArrivalNotification builds the alert for ev.
func ArrivalNotification(routeID, sessionID string, ev arrival.Event) Notification {
	return Notification{
		RouteID:       routeID,
		SessionID:     sessionID,
		WaypointIndex: ev.WaypointIndex,
		WaypointName:  ev.Waypoint.Name,
		Title:         "Arrived at " + ev.Waypoint.Name,
		Body:          ev.Waypoint.Description,
		Trigger:       string(ev.Trigger),
		ArrivedAt:     ev.ArrivedAt,
	}
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a notifier that logs every alert at info level.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs n.
func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info().
		Str("route_id", n.RouteID).
		Str("session_id", n.SessionID).
		Int("waypoint_index", n.WaypointIndex).
		Str("trigger", n.Trigger).
		Str("body", n.Body).
		Msg(n.Title)
	return nil
}

// Multi fans a notification out to several notifiers.
// Every notifier is called; their errors are joined.
type Multi []Notifier

// Notify calls every notifier in order.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Gate delivers through Notifier only while Enabled reports true.
type Gate struct {
	Notifier Notifier
	Enabled  func(ctx context.Context) bool
}

// Notify forwards n unless the gate is closed.
func (g Gate) Notify(ctx context.Context, n Notification) error {
	if g.Enabled != nil && !g.Enabled(ctx) {
		return nil
	}
	return g.Notifier.Notify(ctx, n)
}

// Nop discards notifications.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, Notification) error { return nil }
