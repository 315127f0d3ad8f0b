package models

// RouteSummary is one entry of the route list.
type RouteSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	WaypointCount int    `json:"waypointCount"`
}

// RouteList is the response of GET /v1/routes.
type RouteList struct {
	Routes []RouteSummary `json:"routes"`
}

// Place is a route endpoint with its walking-directions link.
type Place struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Address       string  `json:"address"`
	DirectionsURL string  `json:"directionsUrl"`
}

// Waypoint is a route waypoint with its position in the route and directions link.
type Waypoint struct {
	Index         int     `json:"index"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Address       string  `json:"address"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	DirectionsURL string  `json:"directionsUrl"`
}

// Route is the detail view of a route. Its fields are a superset of the
// catalog wire format, so clients can cache it as a plain route.
type Route struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Start     Place      `json:"start"`
	End       Place      `json:"end"`
	Waypoints []Waypoint `json:"waypoints"`
	UpdatedAt *Timestamp `json:"updatedAt,omitempty"`
}

// BoundingBox is a lat/lon box.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// RouteGeometry is the map shape of a route as encoded polylines.
type RouteGeometry struct {
	RouteID          string      `json:"routeId"`
	Polyline         string      `json:"polyline"`
	WaypointPolyline string      `json:"waypointPolyline"`
	DistanceMeters   float64     `json:"distanceMeters"`
	BoundingBox      BoundingBox `json:"boundingBox"`
}
