package tour

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/waypointwalk/waypointwalk/internal/geo"
	"github.com/waypointwalk/waypointwalk/pkg/polyline"
)

// ServiceConfig holds configuration for the route catalog service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger
}

// Service provides route catalog operations.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

// NewService creates a new route catalog service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}
}

// List returns the summaries of every route in the catalog.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	routes, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(routes))
	for _, r := range routes {
		summaries = append(summaries, r.Summary())
	}
	return summaries, nil
}

// Get retrieves a route by ID.
func (s *Service) Get(ctx context.Context, id string) (*Route, error) {
	return s.repo.Get(ctx, id)
}

// Fetch retrieves a route by ID. It lets the catalog act as the route source
// for server-side walking sessions.
func (s *Service) Fetch(ctx context.Context, id string) (*Route, error) {
	return s.repo.Get(ctx, id)
}

// Upsert validates and stores a route.
func (s *Service) Upsert(ctx context.Context, route *Route) (*Route, error) {
	if err := route.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, route); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("route_id", route.ID).
		Int("waypoints", len(route.Waypoints)).
		Msg("route stored")

	return s.repo.Get(ctx, route.ID)
}

// Delete removes a route from the catalog.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrRouteNotFound) {
			s.logger.Error().Err(err).Str("route_id", id).Msg("failed to delete route")
		}
		return err
	}

	s.logger.Info().Str("route_id", id).Msg("route deleted")
	return nil
}

// Geometry is the drawable shape of a route: start, waypoints and end joined in order.
type Geometry struct {
	RouteID          string
	Polyline         string
	DistanceMeters   float64
	BoundingBox      geo.BoundingBox
	WaypointPolyline string
}

// Geometry returns the map geometry of a route.
func (s *Service) Geometry(ctx context.Context, id string) (*Geometry, error) {
	route, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	path := route.Path()
	box, _ := geo.Bounds(path)

	waypoints := make([]geo.Coordinate, 0, len(route.Waypoints))
	for _, w := range route.Waypoints {
		waypoints = append(waypoints, w.Location)
	}

	return &Geometry{
		RouteID:          route.ID,
		Polyline:         polyline.Encode(path),
		DistanceMeters:   geo.PathLengthMeters(path),
		BoundingBox:      box,
		WaypointPolyline: polyline.Encode(waypoints),
	}, nil
}
