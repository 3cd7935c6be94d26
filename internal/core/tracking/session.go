package tracking

import (
	"time"

	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/pkg/geospatial"
)

// NewSession starts a trip for vehicleID on routeID with the pointer at the first stop.
func NewSession(vehicleID, routeID string, now time.Time) *domain.TrackingSession {
	return &domain.TrackingSession{
		VehicleID: vehicleID,
		RouteID:   routeID,
		StartedAt: now.UTC(),
	}
}

// Observe locates pos on the route and then targets the session's next stop
// instead of the closest segment's end stop.
//
// The first on-route fix of a session places the pointer where the bus is:
// at the earliest stop up to the closest segment's end that lies within
// AdvanceThresholdKm, otherwise at that segment's end stop. A session started
// mid-trip therefore does not target stops already passed.
//
// When the bus is on route and within AdvanceThresholdKm of that stop, the
// pointer moves one stop forward and the reached stop is returned. The
// returned progress still names the reached stop; the new target applies
// from the next call. The pointer is never moved backwards, so jitter that
// triggers an early advance is not corrected.
func Observe(sess *domain.TrackingSession, stops []domain.Stop, pos domain.Position, cfg Config) (domain.RouteProgress, *domain.Stop) {
	cfg = cfg.withDefaults()
	p := LocateOnRoute(stops, pos, cfg)

	if sess.NextStopIndex < 0 {
		sess.NextStopIndex = 0
	}
	if p.Status != domain.StatusOnRoute {
		return p, nil
	}
	if !sess.Seeded {
		if i := seedIndex(stops, pos, p.ClosestSegmentIndex, cfg); i > sess.NextStopIndex {
			sess.NextStopIndex = i
		}
		sess.Seeded = true
	}

	if sess.NextStopIndex >= len(stops) {
		p.NextStop = nil
		p.ETA = domain.ETA{}
		return p, nil
	}

	next := stops[sess.NextStopIndex]
	p.NextStop = &next
	p.ETA = constantSpeedETA(pos, next, cfg)

	if p.ETA.DistanceKm < cfg.AdvanceThresholdKm {
		sess.NextStopIndex++
		arrived := next
		return p, &arrived
	}
	return p, nil
}

func seedIndex(stops []domain.Stop, pos domain.Position, segment int, cfg Config) int {
	end := segment + 1
	if end >= len(stops) {
		end = len(stops) - 1
	}
	for i := 0; i <= end; i++ {
		if geospatial.HaversineKm(pos.Lat, pos.Lng, stops[i].Lat, stops[i].Lng) < cfg.AdvanceThresholdKm {
			return i
		}
	}
	return end
}

// TripComplete reports whether the session has passed every stop.
func TripComplete(sess *domain.TrackingSession, stops []domain.Stop) bool {
	return len(stops) > 0 && sess.NextStopIndex >= len(stops)
}
