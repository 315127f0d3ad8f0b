package featureflags

import (
	"context"
	"errors"
)

// Flag errors.
var (
	ErrFlagNotFound = errors.New("feature flag not found")
	ErrUnknownFlag  = errors.New("unknown feature flag")
	ErrInvalidValue = errors.New("invalid feature flag value")
)

// Repository stores flag overrides. Flags without an override use their default.
type Repository interface {
	GetFlag(ctx context.Context, key string) (*Flag, error)
	GetAllFlags(ctx context.Context) (map[string]*Flag, error)

	// SetFlags writes all flags or none.
	SetFlags(ctx context.Context, flags []*Flag) error

	DeleteFlag(ctx context.Context, key string) error
}
