package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointwalk/waypointwalk/internal/geo"
	"github.com/waypointwalk/waypointwalk/internal/routecache"
	"github.com/waypointwalk/waypointwalk/internal/tour"
	"github.com/waypointwalk/waypointwalk/internal/worker"
)

type fakeCatalog struct {
	summaries []tour.Summary
	err       error
}

func (c *fakeCatalog) List(context.Context) ([]tour.Summary, error) {
	return c.summaries, c.err
}

func testRoute(id string) *tour.Route {
	return &tour.Route{
		ID:    id,
		Name:  "Route " + id,
		Start: tour.Place{Address: "Start", Location: geo.Coordinate{Lat: 0, Lon: 0}},
		End:   tour.Place{Address: "End", Location: geo.Coordinate{Lat: 0, Lon: 0.002}},
		Waypoints: []tour.Waypoint{
			{Name: "Marker", Location: geo.Coordinate{Lat: 0, Lon: 0.001}},
		},
	}
}

// recordingFetcher serves routes by id and fails for ids in failing.
type recordingFetcher struct {
	mu      sync.Mutex
	failing map[string]bool
	calls   []string
}

func (f *recordingFetcher) Fetch(_ context.Context, routeID string) (*tour.Route, error) {
	f.mu.Lock()
	f.calls = append(f.calls, routeID)
	f.mu.Unlock()

	if f.failing[routeID] {
		return nil, errors.New("upstream unavailable")
	}
	return testRoute(routeID), nil
}

func newJob(catalog worker.Catalog, fetcher routecache.Fetcher, store routecache.Store, cfg worker.WarmConfig) *worker.WarmJob {
	return worker.NewWarmJob(worker.WarmJobConfig{
		Config:  cfg,
		Catalog: catalog,
		Fetcher: fetcher,
		Store:   store,
		Logger:  zerolog.Nop(),
	})
}

func TestDefaultWarmConfig(t *testing.T) {
	cfg := worker.DefaultWarmConfig()

	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.RouteIDs)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("WARM_SUBSCRIPTION", "")
	t.Setenv("PUBSUB_PROJECT_ID", "walks-prod")
	t.Setenv("WARM_ROUTE_IDS", "park-loop, harbour ,,")
	t.Setenv("WARM_CONCURRENCY", "8")
	t.Setenv("WARM_TIMEOUT", "5s")
	t.Setenv("WARM_INTERVAL", "1h")

	cfg := worker.ConfigFromEnv()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "walks-prod", cfg.ProjectID)
	assert.Equal(t, "route-cache-warm", cfg.SubscriptionName)
	assert.Equal(t, []string{"park-loop", "harbour"}, cfg.Warm.RouteIDs)
	assert.Equal(t, 8, cfg.Warm.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Warm.Timeout)
	assert.Equal(t, time.Hour, cfg.Interval)
}

func TestWarmJob_RunWarmsWholeCatalog(t *testing.T) {
	catalog := &fakeCatalog{summaries: []tour.Summary{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	fetcher := &recordingFetcher{}
	store := routecache.NewMemoryStore()
	job := newJob(catalog, fetcher, store, worker.WarmConfig{Concurrency: 2})

	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Successful)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 3, store.Len())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, fetcher.calls)

	entry, err := store.Get(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "Route b", entry.Route.Name)
}

func TestWarmJob_RunExplicitRoutes(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("must not be listed")}
	fetcher := &recordingFetcher{}
	store := routecache.NewMemoryStore()
	job := newJob(catalog, fetcher, store, worker.WarmConfig{RouteIDs: []string{"configured"}})

	result, err := job.Run(context.Background(), "x", "x", "y")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.ElementsMatch(t, []string{"x", "y"}, fetcher.calls)

	fetcher.calls = nil
	result, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, []string{"configured"}, fetcher.calls)
}

func TestWarmJob_RunRecordsFailures(t *testing.T) {
	catalog := &fakeCatalog{summaries: []tour.Summary{{ID: "ok"}, {ID: "broken"}}}
	fetcher := &recordingFetcher{failing: map[string]bool{"broken": true}}
	store := routecache.NewMemoryStore()
	job := newJob(catalog, fetcher, store, worker.WarmConfig{})

	result, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "broken", result.Errors[0].RouteID)
	assert.Contains(t, result.Errors[0].Error, "upstream unavailable")
	assert.Equal(t, 1, store.Len())
}

func TestWarmJob_RunCatalogErrors(t *testing.T) {
	store := routecache.NewMemoryStore()

	_, err := newJob(&fakeCatalog{err: errors.New("boom")}, &recordingFetcher{}, store, worker.WarmConfig{}).
		Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing catalog routes")

	_, err = newJob(&fakeCatalog{}, &recordingFetcher{}, store, worker.WarmConfig{}).
		Run(context.Background())
	assert.ErrorIs(t, err, worker.ErrNoRoutes)
}

func TestWarmJob_RunCancelledCountsSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	catalog := &fakeCatalog{}
	job := newJob(catalog, &recordingFetcher{}, routecache.NewMemoryStore(), worker.WarmConfig{Concurrency: 1})

	result, err := job.Run(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Successful+result.Failed)
}

func TestWarmJob_HealthCheck(t *testing.T) {
	store := routecache.NewMemoryStore()

	healthy := newJob(&fakeCatalog{summaries: []tour.Summary{{ID: "a"}}}, &recordingFetcher{}, store, worker.WarmConfig{})
	assert.NoError(t, healthy.HealthCheck(context.Background()))

	down := newJob(&fakeCatalog{err: errors.New("refused")}, &recordingFetcher{}, store, worker.WarmConfig{})
	err := down.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestWarmJob_Metrics(t *testing.T) {
	catalog := &fakeCatalog{summaries: []tour.Summary{{ID: "a"}, {ID: "b"}}}
	fetcher := &recordingFetcher{failing: map[string]bool{"b": true}}
	job := newJob(catalog, fetcher, routecache.NewMemoryStore(), worker.WarmConfig{})

	_, err := job.Run(context.Background())
	require.NoError(t, err)
	_, err = job.Run(context.Background())
	require.NoError(t, err)

	m := job.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRuns)
	assert.Equal(t, int64(2), m.RoutesWarmed)
	assert.Equal(t, int64(2), m.RoutesFailed)
	assert.False(t, m.LastRunAt.IsZero())

	snapshot := job.MetricsSnapshot()
	assert.Equal(t, int64(2), snapshot["total_runs"])
	assert.Contains(t, snapshot, "last_run_duration")
}
