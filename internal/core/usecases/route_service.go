package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/core/ports"
	"github.com/samirrijal/bustrack/internal/core/tracking"
	"github.com/samirrijal/bustrack/internal/pkg/geospatial"
	"github.com/samirrijal/bustrack/internal/pkg/metrics"
)

const (
	routeStopsTTL = 600
	routePathTTL  = 600
)

// Path sources reported in domain.RoutePath.Source.
const (
	PathSourceStored     = "stored"
	PathSourceDirections = "directions"
	PathSourceStops      = "stops"
)

// RouteService handles route-related business logic.
type RouteService struct {
	routes   ports.BusRouteRepository
	vehicles ports.VehiclePositionRepository
	cache    ports.CacheService
	routing  ports.RoutingService
}

// NewRouteService creates a new RouteService. cache and routing may be nil.
func NewRouteService(
	routes ports.BusRouteRepository,
	vehicles ports.VehiclePositionRepository,
	cache ports.CacheService,
	routing ports.RoutingService,
) *RouteService {
	return &RouteService{routes: routes, vehicles: vehicles, cache: cache, routing: routing}
}

// GetByID returns a route by its id.
func (s *RouteService) GetByID(ctx context.Context, id string) (*domain.BusRoute, error) {
	return s.routes.GetByID(ctx, id)
}

// List returns routes, optionally only the active ones.
func (s *RouteService) List(ctx context.Context, activeOnly bool) ([]domain.BusRoute, error) {
	return s.routes.List(ctx, activeOnly)
}

// GetLiveVehicles returns the latest vehicle positions on a route.
func (s *RouteService) GetLiveVehicles(ctx context.Context, routeID string) ([]domain.VehiclePosition, error) {
	if s.vehicles == nil {
		return nil, nil
	}
	return s.vehicles.LatestByRoute(ctx, routeID)
}

// ListStops returns the ordered stops of a route. An unknown route yields
// domain.ErrNotFound.
func (s *RouteService) ListStops(ctx context.Context, routeID string) ([]domain.Stop, error) {
	cacheKey := "routes:stops:" + routeID
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var stops []domain.Stop
			if err := json.Unmarshal(data, &stops); err == nil {
				metrics.CacheHits.WithLabelValues("route_stops").Inc()
				return stops, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("route_stops").Inc()
	}

	stops, err := s.routes.ListStops(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("list stops: %w", err)
	}
	if len(stops) == 0 {
		// Tell an unknown route apart from a route without stops.
		if _, err := s.routes.GetByID(ctx, routeID); err != nil {
			return nil, err
		}
		return []domain.Stop{}, nil
	}

	if s.cache != nil {
		if data, err := json.Marshal(stops); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, routeStopsTTL); err != nil {
				slog.Warn("failed to cache route stops", "route_id", routeID, "error", err)
			}
		}
	}

	return stops, nil
}

// GetPath returns the drawable path of a route. The stored polyline is used
// when present; otherwise one is fetched from the routing service and saved,
// and as a last resort the stops themselves are encoded. A stored polyline
// that fails to decode yields the decoded prefix with Partial set.
func (s *RouteService) GetPath(ctx context.Context, routeID string) (*domain.RoutePath, error) {
	cacheKey := "routes:path:" + routeID
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var path domain.RoutePath
			if err := json.Unmarshal(data, &path); err == nil {
				metrics.CacheHits.WithLabelValues("route_path").Inc()
				return &path, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("route_path").Inc()
	}

	route, err := s.routes.GetByID(ctx, routeID)
	if err != nil {
		return nil, err
	}

	encoded, source := route.EncodedPolyline, PathSourceStored
	if encoded == "" {
		stops, err := s.ListStops(ctx, routeID)
		if err != nil {
			return nil, err
		}
		encoded, source = s.buildPolyline(ctx, routeID, stops)
	}

	coords, err := geospatial.DecodePolyline(encoded)
	path := &domain.RoutePath{
		RouteID:     routeID,
		Encoded:     encoded,
		Coordinates: coords,
		Source:      source,
		Partial:     err != nil,
	}
	if err != nil {
		slog.Warn("route polyline is malformed", "route_id", routeID, "decoded_points", len(coords), "error", err)
		return path, nil
	}

	if s.cache != nil {
		if data, err := json.Marshal(path); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, routePathTTL); err != nil {
				slog.Warn("failed to cache route path", "route_id", routeID, "error", err)
			}
		}
	}
	return path, nil
}

func (s *RouteService) buildPolyline(ctx context.Context, routeID string, stops []domain.Stop) (string, string) {
	if s.routing != nil && len(stops) >= 2 {
		encoded, err := s.routing.RoutePolyline(ctx, stops)
		switch {
		case err != nil:
			slog.Warn("directions polyline unavailable, using stops", "route_id", routeID, "error", err)
		case encoded != "":
			if err := s.routes.UpdatePolyline(ctx, routeID, encoded); err != nil {
				slog.Warn("failed to store route polyline", "route_id", routeID, "error", err)
			}
			return encoded, PathSourceDirections
		}
	}
	return geospatial.EncodePolyline(geospatial.StopsToCoordinates(stops)), PathSourceStops
}

// Import validates and stores a route with its ordered stops. When every stop
// has a zero distance the cumulative distances are computed from the stop
// coordinates. A route imported without a polyline keeps the stored one only
// while its stops are unchanged. The stored stops are returned.
func (s *RouteService) Import(ctx context.Context, route *domain.BusRoute, stops []domain.Stop) ([]domain.Stop, error) {
	if err := tracking.ValidateRoute(*route); err != nil {
		return nil, err
	}

	stops = append([]domain.Stop(nil), stops...)
	if needsDistances(stops) {
		cum := geospatial.CumulativeKm(geospatial.StopsToCoordinates(stops))
		for i := range stops {
			stops[i].DistanceKm = cum[i]
		}
	}
	if err := tracking.ValidateStops(stops); err != nil {
		return nil, err
	}

	var previous []domain.Stop
	if route.EncodedPolyline == "" {
		var err error
		if previous, err = s.routes.ListStops(ctx, route.ID); err != nil {
			return nil, fmt.Errorf("list stops: %w", err)
		}
	}

	if err := s.routes.Upsert(ctx, route); err != nil {
		return nil, fmt.Errorf("upsert route: %w", err)
	}
	if err := s.routes.ReplaceStops(ctx, route.ID, stops); err != nil {
		return nil, fmt.Errorf("replace stops: %w", err)
	}
	// The stored polyline was drawn through the old stops.
	if len(previous) > 0 && !sameStops(previous, stops) {
		if err := s.routes.UpdatePolyline(ctx, route.ID, ""); err != nil {
			return nil, fmt.Errorf("clear polyline: %w", err)
		}
		slog.Info("route stops changed, stored polyline cleared", "route_id", route.ID)
	}

	if s.cache != nil {
		for _, key := range []string{"routes:stops:" + route.ID, "routes:path:" + route.ID} {
			if err := s.cache.Delete(ctx, key); err != nil {
				slog.Warn("failed to invalidate route cache", "key", key, "error", err)
			}
		}
	}
	return stops, nil
}

// sameStops reports whether a and b visit the same stops at the same places.
func sameStops(a, b []domain.Stop) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Lat != b[i].Lat || a[i].Lng != b[i].Lng {
			return false
		}
	}
	return true
}

func needsDistances(stops []domain.Stop) bool {
	if len(stops) < 2 {
		return false
	}
	for _, st := range stops {
		if st.DistanceKm != 0 {
			return false
		}
	}
	return true
}
