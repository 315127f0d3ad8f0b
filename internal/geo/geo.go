// Package geo provides spherical distance helpers for walking routes.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000.0

// ErrInvalidCoordinate indicates a latitude or longitude outside its valid range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate represents a geographic point in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Validate checks if the coordinate is within valid ranges.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidCoordinate, c.Lat)
	}
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidCoordinate, c.Lon)
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// DistanceMeters returns the haversine great-circle distance between a and b.
// Inputs are assumed valid; range checks belong to the caller.
func DistanceMeters(a, b Coordinate) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	// Rounding can push h a hair past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BoundingBox is the smallest lat/lon box enclosing a set of points.
type BoundingBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// Bounds returns the bounding box of points, or false when points is empty.
func Bounds(points []Coordinate) (BoundingBox, bool) {
	if len(points) == 0 {
		return BoundingBox{}, false
	}

	box := BoundingBox{
		MinLat: points[0].Lat,
		MinLon: points[0].Lon,
		MaxLat: points[0].Lat,
		MaxLon: points[0].Lon,
	}
	for _, p := range points[1:] {
		box.MinLat = math.Min(box.MinLat, p.Lat)
		box.MinLon = math.Min(box.MinLon, p.Lon)
		box.MaxLat = math.Max(box.MaxLat, p.Lat)
		box.MaxLon = math.Max(box.MaxLon, p.Lon)
	}
	return box, true
}

// PathLengthMeters sums the distances between consecutive points.
func PathLengthMeters(points []Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += DistanceMeters(points[i-1], points[i])
	}
	return total
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
