package tracking

import (
	"math"

	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/pkg/geospatial"
)

// EstimateETA returns the whole minutes needed to cover distanceKm at a
// constant speed, rounded up.
func EstimateETA(distanceKm, speedKmph float64) int {
	if distanceKm <= 0 || speedKmph <= 0 {
		return 0
	}
	return int(math.Ceil(distanceKm * 60 / speedKmph))
}

func constantSpeedETA(pos domain.Position, stop domain.Stop, cfg Config) domain.ETA {
	km := geospatial.HaversineKm(pos.Lat, pos.Lng, stop.Lat, stop.Lng)
	return domain.ETA{
		Available:  true,
		DistanceKm: km,
		Minutes:    EstimateETA(km, cfg.AssumedSpeedKmph),
		Source:     domain.ETASourceConstantSpeed,
	}
}

// MergeEnrichment overrides the constant-speed ETA with figures from a
// routing service. Nil or empty enrichment, or a progress without an
// available ETA (off route, no fix, trip complete), is returned unchanged.
func MergeEnrichment(p domain.RouteProgress, e *domain.Enrichment) domain.RouteProgress {
	if e == nil || e.IsEmpty() || !p.ETA.Available {
		return p
	}

	if e.DistanceKm > 0 {
		p.ETA.DistanceKm = e.DistanceKm
	}
	if e.DurationMin > 0 {
		p.ETA.Minutes = int(math.Ceil(e.DurationMin))
	}
	p.ETA.DistanceText = e.DistanceText
	p.ETA.DurationText = e.DurationText
	p.ETA.Source = domain.ETASourceDistanceMatrix
	return p
}
