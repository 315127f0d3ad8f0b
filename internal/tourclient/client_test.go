package tourclient_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypointwalk/waypointwalk/internal/geo"
	"github.com/waypointwalk/waypointwalk/internal/resilience"
	"github.com/waypointwalk/waypointwalk/internal/tour"
	"github.com/waypointwalk/waypointwalk/internal/tourclient"
)

func catalogRoute() *tour.Route {
	return &tour.Route{
		ID:    "harbour",
		Name:  "Harbour Loop",
		Start: tour.Place{Address: "Quay 1", Location: geo.Coordinate{Lat: 53.5, Lon: 9.9}},
		End:   tour.Place{Address: "Quay 9", Location: geo.Coordinate{Lat: 53.51, Lon: 9.91}},
		Waypoints: []tour.Waypoint{
			{Name: "Lighthouse", Description: "Red and white", Address: "Pier 3", Location: geo.Coordinate{Lat: 53.505, Lon: 9.905}},
		},
	}
}

func newCatalogServer(t *testing.T, healthy *atomic.Bool) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/v1/ops/health", func(w http.ResponseWriter, _ *http.Request) {
		if healthy != nil && !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK"}`))
	})
	r.Get("/v1/routes", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"routes":[{"id":"harbour","name":"Harbour Loop","waypointCount":1}]}`))
	})
	r.Get("/v1/routes/{routeId}", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "routeId") != "harbour" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(catalogRoute())
	})
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func fastClient(baseURL string, registry *resilience.Registry) *tourclient.Client {
	cfg := resilience.DefaultClientConfig(tourclient.UpstreamName)
	cfg.MaxRetries = 0
	cfg.Timeout = time.Second
	cfg.Registry = registry
	return tourclient.NewClient(tourclient.ClientConfig{
		BaseURL:    baseURL + "/",
		HTTPClient: resilience.NewClient(cfg),
	})
}

func TestClient_Fetch(t *testing.T) {
	server := newCatalogServer(t, nil)
	client := fastClient(server.URL, nil)

	route, err := client.Fetch(context.Background(), "harbour")
	require.NoError(t, err)
	assert.Equal(t, catalogRoute(), route)
}

func TestClient_FetchNotFound(t *testing.T) {
	server := newCatalogServer(t, nil)
	client := fastClient(server.URL, nil)

	_, err := client.Fetch(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, tour.ErrRouteNotFound)
	assert.True(t, tourclient.IsNotFound(err))

	var fetchErr *tourclient.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "missing", fetchErr.RouteID)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}

func TestClient_FetchTransportError(t *testing.T) {
	server := newCatalogServer(t, nil)
	url := server.URL
	server.Close()

	_, err := fastClient(url, nil).Fetch(context.Background(), "harbour")

	var fetchErr *tourclient.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
	assert.False(t, tourclient.IsNotFound(err))
}

func TestClient_List(t *testing.T) {
	server := newCatalogServer(t, nil)

	summaries, err := fastClient(server.URL, nil).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []tour.Summary{{ID: "harbour", Name: "Harbour Loop", WaypointCount: 1}}, summaries)
}

func TestProbe_Reachable(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := newCatalogServer(t, &healthy)

	probe := tourclient.NewProbe(tourclient.ProbeConfig{
		Client: fastClient(server.URL, nil),
		Logger: zerolog.New(io.Discard),
	})
	assert.True(t, probe.Reachable(context.Background()))

	healthy.Store(false)
	assert.False(t, probe.Reachable(context.Background()))
}

func TestProbe_Offline(t *testing.T) {
	server := newCatalogServer(t, nil)
	probe := tourclient.NewProbe(tourclient.ProbeConfig{
		Client:  fastClient(server.URL, nil),
		Offline: true,
	})
	assert.False(t, probe.Reachable(context.Background()))
}

func TestProbe_OpenCircuitIsUnreachable(t *testing.T) {
	var healthy atomic.Bool
	server := newCatalogServer(t, &healthy)

	registry := resilience.NewRegistry()
	client := fastClient(server.URL, registry)
	probe := tourclient.NewProbe(tourclient.ProbeConfig{Client: client, Registry: registry})

	for i := 0; i < 3; i++ {
		assert.False(t, probe.Reachable(context.Background()))
	}
	require.True(t, registry.Health(tourclient.UpstreamName).Down())

	healthy.Store(true)
	assert.False(t, probe.Reachable(context.Background()), "breaker short-circuits until it half-opens")
}
