package tracking

import (
	"math"

	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/pkg/geospatial"
)

// LocateOnRoute finds the route segment closest to pos and derives progress,
// on-route status and the distance/ETA to the segment's end stop.
//
// Closeness is measured with the proxy |distA + distB - segLength| in meters,
// which is zero on the segment and grows as the point leaves it. It is not a
// perpendicular distance and it understates the offset on long segments.
// A true projection would pick different segments near sharp turns.
//
// Invalid input never fails: a (0,0) position reports StatusNoFix and fewer
// than two stops report StatusInsufficientStops, both with zero progress.
func LocateOnRoute(stops []domain.Stop, pos domain.Position, cfg Config) domain.RouteProgress {
	cfg = cfg.withDefaults()
	p := domain.RouteProgress{ClosestSegmentIndex: -1}

	if pos.IsZero() {
		p.Status = domain.StatusNoFix
		return p
	}
	if len(stops) < 2 {
		p.Status = domain.StatusInsufficientStops
		return p
	}

	minDistance := math.Inf(1)
	var projected float64
	for i := 0; i < len(stops)-1; i++ {
		a, b := stops[i], stops[i+1]
		distA := geospatial.Haversine(pos.Lat, pos.Lng, a.Lat, a.Lng)
		distB := geospatial.Haversine(pos.Lat, pos.Lng, b.Lat, b.Lng)
		segLength := geospatial.Haversine(a.Lat, a.Lng, b.Lat, b.Lng)

		proxy := math.Abs(distA + distB - segLength)
		if proxy < minDistance {
			minDistance = proxy
			p.ClosestSegmentIndex = i

			var ratio float64
			if sum := distA + distB; sum > 0 {
				ratio = distA / sum
			}
			projected = a.DistanceKm + ratio*(b.DistanceKm-a.DistanceKm)
		}
	}

	// Only NaN coordinates get here.
	if p.ClosestSegmentIndex < 0 {
		p.Status = domain.StatusInsufficientStops
		return p
	}

	p.MinDistanceMeters = minDistance
	p.ProjectedDistanceKm = projected
	p.OnRoute = minDistance < cfg.OnRouteThresholdMeters

	if !p.OnRoute {
		p.Status = domain.StatusOffRoute
		p.ETA = domain.ETA{Label: domain.OffRouteLabel}
		return p
	}

	p.Status = domain.StatusOnRoute
	p.ProgressRatio = progressRatio(projected, stops[len(stops)-1].DistanceKm)

	next := stops[p.ClosestSegmentIndex+1]
	p.NextStop = &next
	p.ETA = constantSpeedETA(pos, next, cfg)
	return p
}

func progressRatio(projectedKm, totalKm float64) float64 {
	if totalKm <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, projectedKm/totalKm))
}
