package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

// RouteRepo implements ports.BusRouteRepository in memory. The replay tool
// loads route files into it.
type RouteRepo struct {
	mu     sync.RWMutex
	routes map[string]domain.BusRoute
	stops  map[string][]domain.Stop
}

// NewRouteRepo creates an empty RouteRepo.
func NewRouteRepo() *RouteRepo {
	return &RouteRepo{
		routes: make(map[string]domain.BusRoute),
		stops:  make(map[string][]domain.Stop),
	}
}

func (r *RouteRepo) Upsert(ctx context.Context, route *domain.BusRoute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *route
	if prev, ok := r.routes[route.ID]; ok && stored.EncodedPolyline == "" {
		stored.EncodedPolyline = prev.EncodedPolyline
	}
	r.routes[route.ID] = stored
	return nil
}

func (r *RouteRepo) GetByID(ctx context.Context, id string) (*domain.BusRoute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	route, ok := r.routes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &route, nil
}

func (r *RouteRepo) List(ctx context.Context, activeOnly bool) ([]domain.BusRoute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.BusRoute, 0, len(r.routes))
	for _, route := range r.routes {
		if activeOnly && !route.Active {
			continue
		}
		out = append(out, route)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *RouteRepo) ReplaceStops(ctx context.Context, routeID string, stops []domain.Stop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routes[routeID]; !ok {
		return domain.ErrNotFound
	}
	r.stops[routeID] = append([]domain.Stop(nil), stops...)
	return nil
}

func (r *RouteRepo) ListStops(ctx context.Context, routeID string) ([]domain.Stop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Stop(nil), r.stops[routeID]...), nil
}

func (r *RouteRepo) UpdatePolyline(ctx context.Context, routeID, encoded string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	route, ok := r.routes[routeID]
	if !ok {
		return domain.ErrNotFound
	}
	route.EncodedPolyline = encoded
	r.routes[routeID] = route
	return nil
}
