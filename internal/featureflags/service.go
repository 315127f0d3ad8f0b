package featureflags

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// DefaultCacheTTL is how long a flag read from the repository is reused.
const DefaultCacheTTL = time.Minute

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger
	// CacheTTL bounds how stale a flag may be on this instance. Default: 1 minute.
	CacheTTL time.Duration
}

// Service evaluates feature flags with an in-memory cache and falls back to
// defaults when the repository has no override or cannot be read.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	cache  *gocache.Cache
	now    func() time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
		cache:  gocache.New(ttl, 2*ttl),
		now:    time.Now,
	}
}

// GetFlag returns the current value of key, or nil for unknown keys without an override.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if v, ok := s.cache.Get(key); ok {
		return v.(*Flag)
	}

	flag, err := s.repo.GetFlag(ctx, key)
	switch {
	case err == nil:
		s.cache.SetDefault(key, flag)
		return flag
	case errors.Is(err, ErrFlagNotFound):
		flag = DefaultFlags()[key]
		if flag != nil {
			s.cache.SetDefault(key, flag)
		}
		return flag
	default:
		s.logger.Warn().Err(err).Str("flag", key).Msg("failed to get feature flag from repository")
		return DefaultFlags()[key]
	}
}

// GetAllFlags returns defaults merged with repository overrides.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	result := DefaultFlags()

	flags, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to get feature flags from repository, using defaults")
		return result
	}
	for k, v := range flags {
		result[k] = v
	}
	return result
}

// SetFlags validates and stores overrides. Nothing is written when any
// update is invalid.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	now := s.now().UTC()
	for _, f := range flags {
		if err := Validate(f.Key, f.Value); err != nil {
			return err
		}
		if i, ok := f.Value.(int); ok {
			f.Value = float64(i)
		}
		f.UpdatedAt = now
	}

	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return fmt.Errorf("store feature flags: %w", err)
	}

	for _, f := range flags {
		s.cache.SetDefault(f.Key, f)
	}
	return nil
}

// Reset removes the override for key so its default applies again.
func (s *Service) Reset(ctx context.Context, key string) error {
	if _, ok := definitions[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFlag, key)
	}
	if err := s.repo.DeleteFlag(ctx, key); err != nil {
		return fmt.Errorf("delete feature flag: %w", err)
	}
	s.cache.Delete(key)
	return nil
}

// InvalidateCache clears the cached flags, forcing a refresh on next access.
func (s *Service) InvalidateCache() {
	s.cache.Flush()
}

// IsEnabled returns true if the boolean flag key is set.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

// ArrivalNotificationsEnabled reports whether arrival notifications may be sent.
func (s *Service) ArrivalNotificationsEnabled(ctx context.Context) bool {
	return !s.IsEnabled(ctx, FlagDisableArrivalNotifications)
}

// ArrivalThreshold returns the arrival radius in meters for new sessions.
func (s *Service) ArrivalThreshold(ctx context.Context) float64 {
	fallback := definitions[FlagArrivalThresholdMeters].fallback.(float64)
	return s.GetFlag(ctx, FlagArrivalThresholdMeters).Float64Value(fallback)
}
