// Package polyline encodes walking paths with Google's polyline algorithm (precision 5),
// the format map clients use to draw a route between its waypoints.
// See https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"math"

	"github.com/waypointwalk/waypointwalk/internal/geo"
)

const precision = 1e5

// Encode encodes a path into a polyline string.
func Encode(path []geo.Coordinate) string {
	if len(path) == 0 {
		return ""
	}

	buf := make([]byte, 0, len(path)*8)
	var prevLat, prevLon int
	for _, c := range path {
		lat := int(math.Round(c.Lat * precision))
		lon := int(math.Round(c.Lon * precision))
		buf = appendSigned(buf, lat-prevLat)
		buf = appendSigned(buf, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return string(buf)
}

// Decode decodes a polyline string. Trailing partial values are ignored.
func Decode(encoded string) []geo.Coordinate {
	if encoded == "" {
		return nil
	}

	var (
		path     []geo.Coordinate
		lat, lon int
		pos      int
	)
	for pos < len(encoded) {
		dLat, next, ok := readSigned(encoded, pos)
		if !ok {
			break
		}
		dLon, next, ok := readSigned(encoded, next)
		if !ok {
			break
		}
		pos = next
		lat += dLat
		lon += dLon
		path = append(path, geo.Coordinate{Lat: float64(lat) / precision, Lon: float64(lon) / precision})
	}
	return path
}

func appendSigned(buf []byte, v int) []byte {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		buf = append(buf, byte(0x20|(u&0x1f))+63)
		u >>= 5
	}
	return append(buf, byte(u)+63)
}

func readSigned(s string, pos int) (int, int, bool) {
	var result, shift int
	for pos < len(s) {
		b := int(s[pos]) - 63
		pos++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			if result&1 != 0 {
				return ^(result >> 1), pos, true
			}
			return result >> 1, pos, true
		}
	}
	return 0, pos, false
}

// Densify returns points spaced roughly stepMeters apart along path, always keeping
// the first and last point. A non-positive step returns the path unchanged.
func Densify(path []geo.Coordinate, stepMeters float64) []geo.Coordinate {
	if len(path) == 0 {
		return nil
	}
	if stepMeters <= 0 {
		return path
	}

	out := []geo.Coordinate{path[0]}
	walked := 0.0 // distance since the last emitted point
	for i := 1; i < len(path); i++ {
		from, to := path[i-1], path[i]
		segment := geo.DistanceMeters(from, to)

		next := stepMeters - walked
		if next > segment {
			walked += segment
			continue
		}
		for ; next <= segment; next += stepMeters {
			f := next / segment
			out = append(out, geo.Coordinate{
				Lat: from.Lat + f*(to.Lat-from.Lat),
				Lon: from.Lon + f*(to.Lon-from.Lon),
			})
		}
		walked = segment - (next - stepMeters)
	}

	if last := path[len(path)-1]; out[len(out)-1] != last {
		out = append(out, last)
	}
	return out
}
