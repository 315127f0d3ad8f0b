package tour

import (
	"encoding/json"

	"github.com/waypointwalk/waypointwalk/internal/geo"
)

// Wire shapes shared by the catalog API, the HTTP fetcher and every cache store.

type placeJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

type waypointJSON struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Address     string  `json:"address"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type routeJSON struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Start     placeJSON      `json:"start"`
	End       placeJSON      `json:"end"`
	Waypoints []waypointJSON `json:"waypoints"`
}

// MarshalJSON implements json.Marshaler.
func (p Place) MarshalJSON() ([]byte, error) {
	return json.Marshal(placeJSON{Latitude: p.Location.Lat, Longitude: p.Location.Lon, Address: p.Address})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Place) UnmarshalJSON(data []byte) error {
	var w placeJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Place{Address: w.Address, Location: geo.Coordinate{Lat: w.Latitude, Lon: w.Longitude}}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (w Waypoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(waypointJSON{
		Name:        w.Name,
		Description: w.Description,
		Address:     w.Address,
		Latitude:    w.Location.Lat,
		Longitude:   w.Location.Lon,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (w *Waypoint) UnmarshalJSON(data []byte) error {
	var v waypointJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*w = Waypoint{
		Name:        v.Name,
		Description: v.Description,
		Address:     v.Address,
		Location:    geo.Coordinate{Lat: v.Latitude, Lon: v.Longitude},
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r Route) MarshalJSON() ([]byte, error) {
	out := routeJSON{
		ID:        r.ID,
		Name:      r.Name,
		Waypoints: make([]waypointJSON, 0, len(r.Waypoints)),
	}
	out.Start = placeJSON{Latitude: r.Start.Location.Lat, Longitude: r.Start.Location.Lon, Address: r.Start.Address}
	out.End = placeJSON{Latitude: r.End.Location.Lat, Longitude: r.End.Location.Lon, Address: r.End.Address}
	for _, w := range r.Waypoints {
		out.Waypoints = append(out.Waypoints, waypointJSON{
			Name:        w.Name,
			Description: w.Description,
			Address:     w.Address,
			Latitude:    w.Location.Lat,
			Longitude:   w.Location.Lon,
		})
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Route) UnmarshalJSON(data []byte) error {
	var v struct {
		ID        string     `json:"id"`
		Name      string     `json:"name"`
		Start     Place      `json:"start"`
		End       Place      `json:"end"`
		Waypoints []Waypoint `json:"waypoints"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Route{ID: v.ID, Name: v.Name, Start: v.Start, End: v.End, Waypoints: v.Waypoints}
	return nil
}
