package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointwalk/waypointwalk/internal/worker"
)

type fakeRunner struct {
	result    *worker.WarmResult
	runErr    error
	healthErr error

	runs     int
	routeIDs []string
	checks   int
}

func (r *fakeRunner) Run(_ context.Context, routeIDs ...string) (*worker.WarmResult, error) {
	r.runs++
	r.routeIDs = routeIDs
	return r.result, r.runErr
}

func (r *fakeRunner) HealthCheck(context.Context) error {
	r.checks++
	return r.healthErr
}

func TestProcessor_CacheWarm(t *testing.T) {
	runner := &fakeRunner{result: &worker.WarmResult{Total: 2, Successful: 2}}
	p := worker.NewProcessor(runner, zerolog.Nop())

	err := p.Process(context.Background(), []byte(`{"job_type":"cache_warm","route_ids":["park-loop"]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, runner.runs)
	assert.Equal(t, []string{"park-loop"}, runner.routeIDs)
}

func TestProcessor_CacheWarmTooManyFailures(t *testing.T) {
	runner := &fakeRunner{result: &worker.WarmResult{Total: 3, Successful: 1, Failed: 2}}
	p := worker.NewProcessor(runner, zerolog.Nop())

	err := p.Process(context.Background(), []byte(`{"job_type":"cache_warm"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many warm failures: 2/3")
	assert.NotErrorIs(t, err, worker.ErrMalformedMessage)
}

func TestProcessor_CacheWarmEmptyCatalog(t *testing.T) {
	runner := &fakeRunner{runErr: worker.ErrNoRoutes}
	p := worker.NewProcessor(runner, zerolog.Nop())

	assert.NoError(t, p.Process(context.Background(), []byte(`{"job_type":"cache_warm"}`)))
}

func TestProcessor_CacheWarmListFailure(t *testing.T) {
	runner := &fakeRunner{runErr: errors.New("catalog down")}
	p := worker.NewProcessor(runner, zerolog.Nop())

	err := p.Process(context.Background(), []byte(`{"job_type":"cache_warm"}`))
	assert.EqualError(t, err, "catalog down")
}

func TestProcessor_HealthCheck(t *testing.T) {
	runner := &fakeRunner{}
	p := worker.NewProcessor(runner, zerolog.Nop())

	require.NoError(t, p.Process(context.Background(), []byte(`{"job_type":"health_check"}`)))
	assert.Equal(t, 1, runner.checks)
	assert.Zero(t, runner.runs)

	runner.healthErr = errors.New("unreachable")
	assert.Error(t, p.Process(context.Background(), []byte(`{"job_type":"health_check"}`)))
}

func TestProcessor_UnknownJobTypeIsAcked(t *testing.T) {
	runner := &fakeRunner{}
	p := worker.NewProcessor(runner, zerolog.Nop())

	assert.NoError(t, p.Process(context.Background(), []byte(`{"job_type":"provider_refresh"}`)))
	assert.Zero(t, runner.runs)
	assert.Zero(t, runner.checks)
}

func TestProcessor_MalformedMessage(t *testing.T) {
	p := worker.NewProcessor(&fakeRunner{}, zerolog.Nop())

	err := p.Process(context.Background(), []byte(`not json`))
	assert.ErrorIs(t, err, worker.ErrMalformedMessage)
}
