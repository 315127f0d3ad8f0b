package models

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	RouteID string `json:"routeId"`
}

// PositionRequest is the body of POST /v1/sessions/{sessionId}/positions.
type PositionRequest struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Timestamp *Timestamp `json:"timestamp,omitempty"`
}

// Arrival is one waypoint arrival.
type Arrival struct {
	WaypointIndex  int       `json:"waypointIndex"`
	WaypointName   string    `json:"waypointName"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Trigger        string    `json:"trigger"`
	ArrivedAt      Timestamp `json:"arrivedAt"`
	DistanceMeters *float64  `json:"distanceMeters,omitempty"`
}

// ArrivalList is the response of a position push or a simulated arrival.
type ArrivalList struct {
	Arrivals  []Arrival `json:"arrivals"`
	Remaining int       `json:"remaining"`
	Completed bool      `json:"completed"`
}

// WaypointProgress is the arrival state of one waypoint.
type WaypointProgress struct {
	Index     int        `json:"index"`
	Name      string     `json:"name"`
	Arrived   bool       `json:"arrived"`
	ArrivedAt *Timestamp `json:"arrivedAt,omitempty"`
}

// Session is the view of a remote walking session.
type Session struct {
	ID         string             `json:"id"`
	RouteID    string             `json:"routeId"`
	CreatedAt  Timestamp          `json:"createdAt"`
	Source     string             `json:"source,omitempty"`
	SavedAt    *Timestamp         `json:"savedAt,omitempty"`
	FetchError *string            `json:"fetchError,omitempty"`
	Route      *Route             `json:"route,omitempty"`
	Progress   []WaypointProgress `json:"progress"`
	Remaining  int                `json:"remaining"`
	Completed  bool               `json:"completed"`
}
