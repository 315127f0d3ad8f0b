package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const sessionMeterName = "github.com/waypointwalk/waypointwalk/internal/session"

// SessionMetrics holds instruments for walking sessions.
type SessionMetrics struct {
	loads          metric.Int64Counter
	arrivals       metric.Int64Counter
	activeSessions metric.Int64UpDownCounter
}

// NewSessionMetrics creates session instruments on the global meter provider.
func NewSessionMetrics() (*SessionMetrics, error) {
	return NewSessionMetricsWithMeter(otel.Meter(sessionMeterName))
}

// NewSessionMetricsWithMeter creates session instruments on meter.
func NewSessionMetricsWithMeter(meter metric.Meter) (*SessionMetrics, error) {
	loads, err := meter.Int64Counter(
		"walk.route.loads",
		metric.WithDescription("Route loads by source and outcome"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, err
	}

	arrivals, err := meter.Int64Counter(
		"walk.waypoint.arrivals",
		metric.WithDescription("Waypoint arrivals by trigger"),
		metric.WithUnit("{arrival}"),
	)
	if err != nil {
		return nil, err
	}

	activeSessions, err := meter.Int64UpDownCounter(
		"walk.sessions.active",
		metric.WithDescription("Walking sessions currently open"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	return &SessionMetrics{
		loads:          loads,
		arrivals:       arrivals,
		activeSessions: activeSessions,
	}, nil
}

// RecordLoad records a route load. source is empty when the load failed.
func (m *SessionMetrics) RecordLoad(ctx context.Context, routeID, source string, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("route.id", routeID),
		attribute.Bool("error", err != nil),
	}
	if source != "" {
		attrs = append(attrs, attribute.String("route.source", source))
	}
	m.loads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordArrival records one waypoint arrival.
func (m *SessionMetrics) RecordArrival(ctx context.Context, routeID, trigger string) {
	if m == nil {
		return
	}
	m.arrivals.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route.id", routeID),
		attribute.String("arrival.trigger", trigger),
	))
}

// SessionOpened increments the active session gauge.
func (m *SessionMetrics) SessionOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, 1)
}

// SessionClosed decrements the active session gauge.
func (m *SessionMetrics) SessionClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeSessions.Add(ctx, -1)
}
