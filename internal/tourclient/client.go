// Package tourclient fetches routes from a remote route catalog API.
package tourclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/waypointwalk/waypointwalk/internal/resilience"
	"github.com/waypointwalk/waypointwalk/internal/tour"
)

const (
	// DefaultBaseURL is the catalog API used when no base URL is configured.
	DefaultBaseURL = "http://localhost:8080"

	// UpstreamName identifies the catalog in the resilience registry.
	UpstreamName = "route-catalog"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchError describes a failed catalog request.
type FetchError struct {
	RouteID    string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch route %s: status %d: %v", e.RouteID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch route %s: %v", e.RouteID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ClientConfig holds configuration for the catalog client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient executes requests. If nil, a resilient client is created
	// and registered in Registry.
	HTTPClient HTTPDoer

	// Registry tracks the health of the default client.
	Registry *resilience.Registry

	// Timeout for individual requests (default: 10s).
	Timeout time.Duration
}

// Client is a route catalog API client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
}

// NewClient creates a catalog client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(UpstreamName)
		if cfg.Timeout > 0 {
			rc.Timeout = cfg.Timeout
		}
		rc.Registry = cfg.Registry
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Fetch retrieves a fully materialized route.
func (c *Client) Fetch(ctx context.Context, routeID string) (*tour.Route, error) {
	var route tour.Route
	status, err := c.getJSON(ctx, "/v1/routes/"+url.PathEscape(routeID), &route)
	if err != nil {
		return nil, &FetchError{RouteID: routeID, StatusCode: status, Err: err}
	}
	if route.ID == "" {
		route.ID = routeID
	}
	return &route, nil
}

type listResponse struct {
	Routes []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		WaypointCount int    `json:"waypointCount"`
	} `json:"routes"`
}

// List returns the catalog summaries.
func (c *Client) List(ctx context.Context) ([]tour.Summary, error) {
	var body listResponse
	if _, err := c.getJSON(ctx, "/v1/routes", &body); err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}

	out := make([]tour.Summary, 0, len(body.Routes))
	for _, r := range body.Routes {
		out = append(out, tour.Summary{ID: r.ID, Name: r.Name, WaypointCount: r.WaypointCount})
	}
	return out, nil
}

// Ping checks the catalog health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.getJSON(ctx, "/v1/ops/health", nil)
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, tour.ErrRouteNotFound
	case resp.StatusCode != http.StatusOK:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("unexpected status from %s: %s", path, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// IsNotFound reports whether err means the catalog has no such route.
func IsNotFound(err error) bool {
	return errors.Is(err, tour.ErrRouteNotFound)
}
