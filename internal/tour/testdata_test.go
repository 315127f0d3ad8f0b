package tour_test

import (
	"github.com/waypointwalk/waypointwalk/internal/geo"
	"github.com/waypointwalk/waypointwalk/internal/tour"
)

func oldTownRoute() *tour.Route {
	return &tour.Route{
		ID:   "old-town",
		Name: "Old Town Walk",
		Start: tour.Place{
			Address:  "Plac Zamkowy 4, Warszawa",
			Location: geo.Coordinate{Lat: 52.24774, Lon: 21.01367},
		},
		End: tour.Place{
			Address:  "Rynek Nowego Miasta, Warszawa",
			Location: geo.Coordinate{Lat: 52.25337, Lon: 21.00902},
		},
		Waypoints: []tour.Waypoint{
			{
				Name:        "Market Square",
				Description: "The oldest part of the city.",
				Address:     "Rynek Starego Miasta",
				Location:    geo.Coordinate{Lat: 52.24967, Lon: 21.01222},
			},
			{
				Name:        "Barbican",
				Description: "Fortified outpost of the old city walls.",
				Address:     "Nowomiejska 15/17",
				Location:    geo.Coordinate{Lat: 52.25134, Lon: 21.00929},
			},
		},
	}
}
