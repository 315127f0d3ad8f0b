package proximity

import (
	"context"
	"time"

	"github.com/waypointwalk/waypointwalk/internal/geo"
)

// PermissionResult is the outcome of a location permission request.
type PermissionResult string

const (
	PermissionGranted PermissionResult = "granted"
	PermissionDenied  PermissionResult = "denied"
)

// PermissionRequester asks the platform for location access.
type PermissionRequester interface {
	RequestLocationPermission(ctx context.Context) (PermissionResult, error)
}

// PermissionFunc adapts a function to PermissionRequester.
type PermissionFunc func(ctx context.Context) (PermissionResult, error)

// RequestLocationPermission calls f.
func (f PermissionFunc) RequestLocationPermission(ctx context.Context) (PermissionResult, error) {
	return f(ctx)
}

// AlwaysGranted is a PermissionRequester for sources that need no platform consent,
// such as positions pushed by a remote device.
var AlwaysGranted = PermissionFunc(func(context.Context) (PermissionResult, error) {
	return PermissionGranted, nil
})

// Accuracy is a hint to the location source.
type Accuracy string

const (
	AccuracyHigh     Accuracy = "high"
	AccuracyBalanced Accuracy = "balanced"
	AccuracyLow      Accuracy = "low"
)

// DefaultMinDistanceMeters is the minimum movement between two delivered samples.
const DefaultMinDistanceMeters = 5.0

// SubscribeOptions configures a location subscription.
type SubscribeOptions struct {
	Accuracy          Accuracy
	MinDistanceMeters float64
}

// DefaultSubscribeOptions returns high accuracy with a 5 m distance interval.
func DefaultSubscribeOptions() SubscribeOptions {
	return SubscribeOptions{
		Accuracy:          AccuracyHigh,
		MinDistanceMeters: DefaultMinDistanceMeters,
	}
}

// Sample is one position fix.
type Sample struct {
	Location  geo.Coordinate
	Timestamp time.Time
	// Accuracy is the horizontal accuracy radius in meters, when known.
	Accuracy *float64
}

// Subscription is a live location stream. Cancel stops delivery.
type Subscription interface {
	Cancel()
}

// LocationSource delivers position samples to onSample until the subscription is cancelled.
type LocationSource interface {
	Subscribe(ctx context.Context, opts SubscribeOptions, onSample func(Sample)) (Subscription, error)
}
