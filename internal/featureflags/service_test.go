package featureflags_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/featureflags"
)

func newService(repo featureflags.Repository) *featureflags.Service {
	return featureflags.NewService(featureflags.ServiceConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
		CacheTTL:   time.Minute,
	})
}

func TestService_GetFlagDefault(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository())
	ctx := context.Background()

	flag := service.GetFlag(ctx, featureflags.FlagDisableArrivalNotifications)
	if flag == nil {
		t.Fatal("expected flag to be returned")
	}
	if flag.BoolValue(true) != false {
		t.Error("expected disable_arrival_notifications to be false by default")
	}
	if !service.ArrivalNotificationsEnabled(ctx) {
		t.Error("expected notifications enabled by default")
	}
	if got := service.ArrivalThreshold(ctx); got != 50 {
		t.Errorf("expected default threshold 50, got %v", got)
	}
	if service.GetFlag(ctx, "no_such_flag") != nil {
		t.Error("expected nil for unknown flag")
	}
}

func TestService_SetFlags(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository())
	ctx := context.Background()

	err := service.SetFlags(ctx, []*featureflags.Flag{
		{Key: featureflags.FlagDisableArrivalNotifications, Value: true},
		{Key: featureflags.FlagArrivalThresholdMeters, Value: 25},
	})
	if err != nil {
		t.Fatalf("failed to set flags: %v", err)
	}

	if service.ArrivalNotificationsEnabled(ctx) {
		t.Error("expected notifications disabled after update")
	}
	if got := service.ArrivalThreshold(ctx); got != 25 {
		t.Errorf("expected threshold 25, got %v", got)
	}

	flag := service.GetFlag(ctx, featureflags.FlagArrivalThresholdMeters)
	if flag.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
}

func TestService_SetFlagsRejectsInvalid(t *testing.T) {
	repo := featureflags.NewInMemoryRepository()
	service := newService(repo)
	ctx := context.Background()

	tests := []struct {
		name  string
		flags []*featureflags.Flag
		want  error
	}{
		{
			name:  "unknown key",
			flags: []*featureflags.Flag{{Key: "routing_bike_only", Value: true}},
			want:  featureflags.ErrUnknownFlag,
		},
		{
			name:  "wrong kind",
			flags: []*featureflags.Flag{{Key: featureflags.FlagDisableArrivalNotifications, Value: "yes"}},
			want:  featureflags.ErrInvalidValue,
		},
		{
			name:  "threshold out of range",
			flags: []*featureflags.Flag{{Key: featureflags.FlagArrivalThresholdMeters, Value: 0.0}},
			want:  featureflags.ErrInvalidValue,
		},
		{
			name: "one bad update rejects all",
			flags: []*featureflags.Flag{
				{Key: featureflags.FlagDisableArrivalNotifications, Value: true},
				{Key: featureflags.FlagArrivalThresholdMeters, Value: 5000.0},
			},
			want: featureflags.ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.SetFlags(ctx, tt.flags)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	all, _ := repo.GetAllFlags(ctx)
	if len(all) != 0 {
		t.Errorf("expected no overrides stored, got %d", len(all))
	}
}

func TestService_CacheAndInvalidate(t *testing.T) {
	repo := featureflags.NewInMemoryRepository()
	service := newService(repo)
	ctx := context.Background()

	if !service.ArrivalNotificationsEnabled(ctx) {
		t.Fatal("expected notifications enabled")
	}

	// Written behind the service's back, e.g. by another instance.
	_ = repo.SetFlags(ctx, []*featureflags.Flag{{Key: featureflags.FlagDisableArrivalNotifications, Value: true}})

	if !service.ArrivalNotificationsEnabled(ctx) {
		t.Error("expected cached value until invalidation")
	}

	service.InvalidateCache()
	if service.ArrivalNotificationsEnabled(ctx) {
		t.Error("expected repository value after invalidation")
	}
}

func TestService_Reset(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository())
	ctx := context.Background()

	if err := service.SetFlags(ctx, []*featureflags.Flag{{Key: featureflags.FlagArrivalThresholdMeters, Value: 80.0}}); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	if err := service.Reset(ctx, featureflags.FlagArrivalThresholdMeters); err != nil {
		t.Fatalf("failed to reset flag: %v", err)
	}
	if got := service.ArrivalThreshold(ctx); got != 50 {
		t.Errorf("expected default threshold after reset, got %v", got)
	}

	if err := service.Reset(ctx, "nope"); !errors.Is(err, featureflags.ErrUnknownFlag) {
		t.Errorf("expected ErrUnknownFlag, got %v", err)
	}
}

type failingRepository struct {
	featureflags.InMemoryRepository
}

func (*failingRepository) GetFlag(context.Context, string) (*featureflags.Flag, error) {
	return nil, errors.New("connection refused")
}

func (*failingRepository) GetAllFlags(context.Context) (map[string]*featureflags.Flag, error) {
	return nil, errors.New("connection refused")
}

func TestService_RepositoryErrorFallsBackToDefaults(t *testing.T) {
	service := newService(&failingRepository{})
	ctx := context.Background()

	if !service.ArrivalNotificationsEnabled(ctx) {
		t.Error("expected default when repository fails")
	}

	all := service.GetAllFlags(ctx)
	if len(all) != len(featureflags.DefaultFlags()) {
		t.Errorf("expected %d defaults, got %d", len(featureflags.DefaultFlags()), len(all))
	}
}

func TestFlag_Values(t *testing.T) {
	var missing *featureflags.Flag
	if missing.BoolValue(true) != true {
		t.Error("nil flag should return the default bool")
	}
	if missing.Float64Value(3) != 3 {
		t.Error("nil flag should return the default number")
	}

	f := &featureflags.Flag{Key: "x", Value: "text"}
	if f.BoolValue(true) != true || f.Float64Value(7) != 7 {
		t.Error("mismatched kinds should return defaults")
	}
}
