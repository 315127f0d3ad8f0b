// Package featureflags provides runtime switches that operators can change
// without a deploy.
package featureflags

import (
	"fmt"
	"time"
)

// Well-known feature flag keys.
const (
	// FlagDisableArrivalNotifications stops arrival notifications from being
	// delivered. Arrivals are still tracked and returned to clients.
	FlagDisableArrivalNotifications = "disable_arrival_notifications"

	// FlagArrivalThresholdMeters is the arrival radius for new remote sessions.
	FlagArrivalThresholdMeters = "arrival_threshold_meters"
)

// Kind is the value type a flag accepts.
type Kind string

const (
	KindBool   Kind = "bool"
	KindNumber Kind = "number"
)

// Flag is a feature flag with its current value.
// Values are bool or float64, the types JSON decodes into.
type Flag struct {
	Key       string
	Value     interface{}
	UpdatedAt time.Time
}

// BoolValue returns the flag value as a boolean, or defaultValue when the
// flag is nil or not a boolean.
func (f *Flag) BoolValue(defaultValue bool) bool {
	if f == nil {
		return defaultValue
	}
	if v, ok := f.Value.(bool); ok {
		return v
	}
	return defaultValue
}

// Float64Value returns the flag value as a number, or defaultValue when the
// flag is nil or not a number.
func (f *Flag) Float64Value(defaultValue float64) float64 {
	if f == nil {
		return defaultValue
	}
	switch v := f.Value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return defaultValue
	}
}

// definition describes a known flag.
type definition struct {
	kind     Kind
	fallback interface{}
	// validate checks a value that already has the right kind.
	validate func(v interface{}) error
}

var definitions = map[string]definition{
	FlagDisableArrivalNotifications: {kind: KindBool, fallback: false},
	FlagArrivalThresholdMeters: {
		kind:     KindNumber,
		fallback: 50.0,
		validate: func(v interface{}) error {
			if m := v.(float64); m <= 0 || m > 1000 {
				return fmt.Errorf("must be in (0, 1000] meters, got %g", m)
			}
			return nil
		},
	},
}

// DefaultFlags returns the fallback value of every known flag.
func DefaultFlags() map[string]*Flag {
	out := make(map[string]*Flag, len(definitions))
	for key, def := range definitions {
		out[key] = &Flag{Key: key, Value: def.fallback}
	}
	return out
}

// Validate checks that key is a known flag and value has its kind.
func Validate(key string, value interface{}) error {
	def, ok := definitions[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFlag, key)
	}

	switch def.kind {
	case KindBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: %s must be a boolean", ErrInvalidValue, key)
		}
	case KindNumber:
		n, ok := value.(float64)
		if !ok {
			i, isInt := value.(int)
			if !isInt {
				return fmt.Errorf("%w: %s must be a number", ErrInvalidValue, key)
			}
			n = float64(i)
		}
		value = n
	}

	if def.validate != nil {
		if err := def.validate(value); err != nil {
			return fmt.Errorf("%w: %s %v", ErrInvalidValue, key, err)
		}
	}
	return nil
}
