package handler

import (
	"net/http"

	"github.com/waypointwalk/waypointwalk/internal/api/middleware"
	"github.com/waypointwalk/waypointwalk/internal/api/models"
	"github.com/waypointwalk/waypointwalk/internal/arrival"
	"github.com/waypointwalk/waypointwalk/internal/notify"
	"github.com/waypointwalk/waypointwalk/internal/session"
	"github.com/waypointwalk/waypointwalk/internal/tour"
)

func middlewareRequestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

func routeSummaries(in []tour.Summary) models.RouteList {
	out := models.RouteList{Routes: make([]models.RouteSummary, 0, len(in))}
	for _, s := range in {
		out.Routes = append(out.Routes, models.RouteSummary{ID: s.ID, Name: s.Name, WaypointCount: s.WaypointCount})
	}
	return out
}

func routeView(r *tour.Route) models.Route {
	out := models.Route{
		ID:        r.ID,
		Name:      r.Name,
		Start:     placeView(r.Start),
		End:       placeView(r.End),
		Waypoints: make([]models.Waypoint, 0, len(r.Waypoints)),
		UpdatedAt: models.TimestampPtr(&r.UpdatedAt),
	}
	for i, w := range r.Waypoints {
		out.Waypoints = append(out.Waypoints, models.Waypoint{
			Index:         i,
			Name:          w.Name,
			Description:   w.Description,
			Address:       w.Address,
			Latitude:      w.Location.Lat,
			Longitude:     w.Location.Lon,
			DirectionsURL: tour.DirectionsURL(w.Location),
		})
	}
	return out
}

func placeView(p tour.Place) models.Place {
	return models.Place{
		Latitude:      p.Location.Lat,
		Longitude:     p.Location.Lon,
		Address:       p.Address,
		DirectionsURL: tour.DirectionsURL(p.Location),
	}
}

func geometryView(g *tour.Geometry) models.RouteGeometry {
	return models.RouteGeometry{
		RouteID:          g.RouteID,
		Polyline:         g.Polyline,
		WaypointPolyline: g.WaypointPolyline,
		DistanceMeters:   g.DistanceMeters,
		BoundingBox: models.BoundingBox{
			MinLat: g.BoundingBox.MinLat,
			MinLon: g.BoundingBox.MinLon,
			MaxLat: g.BoundingBox.MaxLat,
			MaxLon: g.BoundingBox.MaxLon,
		},
	}
}

// arrivalView shares its title and body with the push notification.
func arrivalView(routeID, sessionID string, ev arrival.Event) models.Arrival {
	n := notify.ArrivalNotification(routeID, sessionID, ev)
	out := models.Arrival{
		WaypointIndex: ev.WaypointIndex,
		WaypointName:  ev.Waypoint.Name,
		Title:         n.Title,
		Body:          n.Body,
		Trigger:       string(ev.Trigger),
		ArrivedAt:     models.Timestamp(ev.ArrivedAt),
	}
	if ev.Trigger == arrival.TriggerProximity {
		d := ev.DistanceMeters
		out.DistanceMeters = &d
	}
	return out
}

func arrivalsView(remote *session.Remote, events []arrival.Event) models.ArrivalList {
	out := models.ArrivalList{Arrivals: make([]models.Arrival, 0, len(events))}
	for _, ev := range events {
		out.Arrivals = append(out.Arrivals, arrivalView(remote.RouteID, remote.ID, ev))
	}
	out.Remaining = remaining(remote.Session().Progress())
	out.Completed = remote.Session().Completed()
	return out
}

func sessionView(remote *session.Remote) models.Session {
	sess := remote.Session()
	out := models.Session{
		ID:        remote.ID,
		RouteID:   remote.RouteID,
		CreatedAt: models.Timestamp(remote.CreatedAt),
		Progress:  []models.WaypointProgress{},
	}

	res := sess.Result()
	if res == nil {
		return out
	}

	out.Source = string(res.Source)
	out.SavedAt = models.TimestampPtr(&res.SavedAt)
	if res.FetchErr != nil {
		msg := res.FetchErr.Error()
		out.FetchError = &msg
	}
	route := routeView(res.Route)
	out.Route = &route

	progress := sess.Progress()
	for i, st := range progress {
		wp := models.WaypointProgress{Index: i, Arrived: st.Arrived, ArrivedAt: models.TimestampPtr(st.ArrivedAt)}
		if i < len(res.Route.Waypoints) {
			wp.Name = res.Route.Waypoints[i].Name
		}
		out.Progress = append(out.Progress, wp)
	}
	out.Remaining = remaining(progress)
	out.Completed = sess.Completed()
	return out
}

func remaining(progress []arrival.WaypointState) int {
	n := 0
	for _, st := range progress {
		if !st.Arrived {
			n++
		}
	}
	return n
}
