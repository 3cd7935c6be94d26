package geospatial

import (
	"math"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return HaversineKm(lat1, lon1, lat2, lon2) * 1000
}

// HaversineKm is Haversine in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// CumulativeKm returns the running path length at each coordinate. The first
// entry is always 0.
func CumulativeKm(coords []domain.Coordinate) []float64 {
	out := make([]float64, len(coords))
	for i := 1; i < len(coords); i++ {
		prev, cur := coords[i-1], coords[i]
		out[i] = out[i-1] + HaversineKm(prev.Lat, prev.Lng, cur.Lat, cur.Lng)
	}
	return out
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
