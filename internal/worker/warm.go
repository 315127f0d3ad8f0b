package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/routecache"
	"github.com/waypointwalk/waypointwalk/internal/tour"
)

// ErrNoRoutes is returned when there is nothing to warm.
var ErrNoRoutes = errors.New("no routes to warm")

// Catalog lists the routes available upstream.
type Catalog interface {
	List(ctx context.Context) ([]tour.Summary, error)
}

// WarmJob fetches routes from the catalog and writes them to the shared
// route store so devices that later go offline still have a copy.
type WarmJob struct {
	config  WarmConfig
	catalog Catalog
	fetcher routecache.Fetcher
	store   routecache.Store
	logger  zerolog.Logger

	metrics *WarmMetrics
}

// WarmMetrics tracks warm job statistics.
type WarmMetrics struct {
	mu sync.RWMutex

	TotalRuns    int64
	RoutesWarmed int64
	RoutesFailed int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// WarmJobConfig holds configuration for creating a WarmJob.
type WarmJobConfig struct {
	Config  WarmConfig
	Catalog Catalog
	Fetcher routecache.Fetcher
	Store   routecache.Store
	Logger  zerolog.Logger
}

// NewWarmJob creates a new cache warm job.
func NewWarmJob(cfg WarmJobConfig) *WarmJob {
	return &WarmJob{
		config:  cfg.Config.withDefaults(),
		catalog: cfg.Catalog,
		fetcher: cfg.Fetcher,
		store:   cfg.Store,
		logger:  cfg.Logger,
		metrics: &WarmMetrics{},
	}
}

// WarmResult contains the result of a warm run.
type WarmResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Total      int
	Successful int
	Failed     int
	Errors     []WarmError
}

// WarmError records a route that could not be warmed.
type WarmError struct {
	RouteID string
	Error   string
}

// Run warms routeIDs, or the configured routes when none are given, or
// every catalog route when neither is set. It only returns an error when
// the route list itself cannot be determined; per-route failures are
// reported in the result.
func (j *WarmJob) Run(ctx context.Context, routeIDs ...string) (*WarmResult, error) {
	startTime := time.Now()

	ids, err := j.targets(ctx, routeIDs)
	if err != nil {
		return nil, err
	}

	result := &WarmResult{
		StartTime: startTime,
		Total:     len(ids),
	}

	j.logger.Info().
		Int("total_routes", result.Total).
		Int("concurrency", j.config.Concurrency).
		Msg("starting route cache warm job")

	idsChan := make(chan string, len(ids))
	resultsChan := make(chan routeResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.warmWorker(ctx, idsChan, resultsChan)
		}()
	}

	for _, id := range ids {
		idsChan <- id
	}
	close(idsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for rr := range resultsChan {
		if rr.err == nil {
			result.Successful++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, WarmError{RouteID: rr.routeID, Error: rr.err.Error()})
	}

	// Routes skipped after cancellation count as failures.
	if skipped := result.Total - result.Successful - result.Failed; skipped > 0 {
		result.Failed += skipped
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("route cache warm job completed")

	return result, nil
}

func (j *WarmJob) targets(ctx context.Context, routeIDs []string) ([]string, error) {
	if len(routeIDs) == 0 {
		routeIDs = j.config.RouteIDs
	}
	if len(routeIDs) > 0 {
		return dedupe(routeIDs), nil
	}

	summaries, err := j.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing catalog routes: %w", err)
	}
	if len(summaries) == 0 {
		return nil, ErrNoRoutes
	}

	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type routeResult struct {
	routeID string
	err     error
}

func (j *WarmJob) warmWorker(ctx context.Context, ids <-chan string, results chan<- routeResult) {
	for id := range ids {
		select {
		case <-ctx.Done():
			return
		default:
			results <- routeResult{routeID: id, err: j.warmRoute(ctx, id)}
		}
	}
}

func (j *WarmJob) warmRoute(ctx context.Context, routeID string) error {
	routeCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	route, err := j.fetcher.Fetch(routeCtx, routeID)
	if err != nil {
		j.logger.Warn().Err(err).Str("route_id", routeID).Msg("failed to fetch route")
		return fmt.Errorf("fetching route: %w", err)
	}
	if err := j.store.Put(routeCtx, routeID, route); err != nil {
		j.logger.Error().Err(err).Str("route_id", routeID).Msg("failed to store route")
		return fmt.Errorf("storing route: %w", err)
	}

	j.logger.Debug().
		Str("route_id", routeID).
		Int("waypoints", len(route.Waypoints)).
		Msg("route cached")
	return nil
}

// HealthCheck verifies the catalog answers within the per-route timeout.
func (j *WarmJob) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	if _, err := j.catalog.List(ctx); err != nil {
		return fmt.Errorf("catalog health check: %w", err)
	}
	return nil
}

func (j *WarmJob) updateMetrics(result *WarmResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.RoutesWarmed += int64(result.Successful)
	j.metrics.RoutesFailed += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *WarmJob) GetMetrics() WarmMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return WarmMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		RoutesWarmed:    j.metrics.RoutesWarmed,
		RoutesFailed:    j.metrics.RoutesFailed,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *WarmJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"routes_warmed":     m.RoutesWarmed,
		"routes_failed":     m.RoutesFailed,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
