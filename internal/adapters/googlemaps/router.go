// Package googlemaps implements ports.RoutingService on the Google Maps
// Distance Matrix and Directions APIs.
package googlemaps

import (
	"context"
	"errors"
	"fmt"
	"math"

	"googlemaps.github.io/maps"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

// maxWaypoints is the Directions API limit on intermediate waypoints.
const maxWaypoints = 25

// Router implements ports.RoutingService.
type Router struct {
	client *maps.Client
}

// New creates a Router. Extra options are passed to maps.NewClient.
func New(apiKey string, opts ...maps.ClientOption) (*Router, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	return &Router{client: client}, nil
}

// DistanceToStop asks the Distance Matrix API for the driving distance and
// duration from pos to stop.
func (r *Router) DistanceToStop(ctx context.Context, pos domain.Position, stop domain.Stop) (*domain.Enrichment, error) {
	resp, err := r.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{latLng(pos.Lat, pos.Lng)},
		Destinations: []string{latLng(stop.Lat, stop.Lng)},
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsMetric,
	})
	if err != nil {
		return nil, fmt.Errorf("distance matrix: %w", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return nil, errors.New("distance matrix: empty response")
	}

	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return nil, fmt.Errorf("distance matrix: element status %s", el.Status)
	}

	minutes := el.Duration.Minutes()
	return &domain.Enrichment{
		DistanceKm:   float64(el.Distance.Meters) / 1000,
		DurationMin:  minutes,
		DistanceText: el.Distance.HumanReadable,
		DurationText: durationText(minutes),
	}, nil
}

// RoutePolyline returns the overview polyline of a driving route through
// stops in order.
func (r *Router) RoutePolyline(ctx context.Context, stops []domain.Stop) (string, error) {
	if len(stops) < 2 {
		return "", fmt.Errorf("%w: directions need at least two stops", domain.ErrInvalidInput)
	}

	first, last := stops[0], stops[len(stops)-1]
	req := &maps.DirectionsRequest{
		Origin:      latLng(first.Lat, first.Lng),
		Destination: latLng(last.Lat, last.Lng),
		Mode:        maps.TravelModeDriving,
		Waypoints:   waypoints(stops[1 : len(stops)-1]),
	}

	routes, _, err := r.client.Directions(ctx, req)
	if err != nil {
		return "", fmt.Errorf("directions: %w", err)
	}
	if len(routes) == 0 || routes[0].OverviewPolyline.Points == "" {
		return "", errors.New("directions: no routes")
	}
	return routes[0].OverviewPolyline.Points, nil
}

// waypoints formats intermediate stops, sampling evenly when there are more
// than the API accepts.
func waypoints(stops []domain.Stop) []string {
	n := len(stops)
	if n > maxWaypoints {
		out := make([]string, 0, maxWaypoints)
		for i := 0; i < maxWaypoints; i++ {
			s := stops[i*n/maxWaypoints]
			out = append(out, latLng(s.Lat, s.Lng))
		}
		return out
	}
	out := make([]string, 0, n)
	for _, s := range stops {
		out = append(out, latLng(s.Lat, s.Lng))
	}
	return out
}

func latLng(lat, lng float64) string {
	return fmt.Sprintf("%f,%f", lat, lng)
}

func durationText(minutes float64) string {
	m := int(math.Ceil(minutes))
	if m == 1 {
		return "1 min"
	}
	return fmt.Sprintf("%d mins", m)
}
