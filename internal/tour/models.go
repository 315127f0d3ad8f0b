// Package tour provides the walking route catalog.
package tour

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/waypointwalk/waypointwalk/internal/geo"
)

// Repository errors.
var (
	ErrRouteNotFound = errors.New("route not found")
)

// Route is an ordered itinerary with a start, an end and intermediate waypoints.
// Waypoint order defines the index used by arrival tracking; it does not force a visiting order.
type Route struct {
	ID        string
	Name      string
	Start     Place
	End       Place
	Waypoints []Waypoint

	// UpdatedAt is set by repositories; it is not part of the wire format.
	UpdatedAt time.Time
}

// Place is a located address, used for the start and end of a route.
type Place struct {
	Address  string
	Location geo.Coordinate
}

// Waypoint is a named point of interest along a route.
type Waypoint struct {
	Name        string
	Description string
	Address     string
	Location    geo.Coordinate
}

// Summary is the list view of a route.
type Summary struct {
	ID            string
	Name          string
	WaypointCount int
}

// Summary returns the list view of r.
func (r *Route) Summary() Summary {
	return Summary{ID: r.ID, Name: r.Name, WaypointCount: len(r.Waypoints)}
}

// Path returns start, every waypoint in order, then end.
func (r *Route) Path() []geo.Coordinate {
	path := make([]geo.Coordinate, 0, len(r.Waypoints)+2)
	path = append(path, r.Start.Location)
	for _, w := range r.Waypoints {
		path = append(path, w.Location)
	}
	return append(path, r.End.Location)
}

// Clone returns a deep copy of r.
func (r *Route) Clone() *Route {
	if r == nil {
		return nil
	}
	cpy := *r
	cpy.Waypoints = append([]Waypoint(nil), r.Waypoints...)
	return &cpy
}

// ValidationError contains field-level validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a single invalid field.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
}

// Validate checks the route's identity and every coordinate.
func (r *Route) Validate() error {
	var errs []FieldError

	if r.ID == "" {
		errs = append(errs, FieldError{Field: "id", Message: "required"})
	}
	if r.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if err := r.Start.Location.Validate(); err != nil {
		errs = append(errs, FieldError{Field: "start", Message: err.Error()})
	}
	if err := r.End.Location.Validate(); err != nil {
		errs = append(errs, FieldError{Field: "end", Message: err.Error()})
	}
	for i, w := range r.Waypoints {
		field := "waypoints[" + strconv.Itoa(i) + "]"
		if w.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "required"})
		}
		if err := w.Location.Validate(); err != nil {
			errs = append(errs, FieldError{Field: field, Message: err.Error()})
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// DirectionsURL builds a walking-directions deep link to c.
func DirectionsURL(c geo.Coordinate) string {
	q := url.Values{}
	q.Set("api", "1")
	q.Set("destination", strconv.FormatFloat(c.Lat, 'f', -1, 64)+","+strconv.FormatFloat(c.Lon, 'f', -1, 64))
	q.Set("travelmode", "walking")
	return "https://www.google.com/maps/dir/?" + q.Encode()
}
