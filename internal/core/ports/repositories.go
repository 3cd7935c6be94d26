package ports

import (
	"context"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

// BusRouteRepository persists bus routes and their ordered stops.
type BusRouteRepository interface {
	Upsert(ctx context.Context, route *domain.BusRoute) error
	GetByID(ctx context.Context, id string) (*domain.BusRoute, error)
	List(ctx context.Context, activeOnly bool) ([]domain.BusRoute, error)
	// ReplaceStops swaps the route's stop list for stops, in order.
	ReplaceStops(ctx context.Context, routeID string, stops []domain.Stop) error
	ListStops(ctx context.Context, routeID string) ([]domain.Stop, error)
	UpdatePolyline(ctx context.Context, routeID, encoded string) error
}

// VehiclePositionRepository persists the position history of buses.
type VehiclePositionRepository interface {
	Insert(ctx context.Context, vp *domain.VehiclePosition) error
	LatestByRoute(ctx context.Context, routeID string) ([]domain.VehiclePosition, error)
}

// GuardianRepository finds who to notify about a stop arrival.
type GuardianRepository interface {
	ListByStop(ctx context.Context, routeID, stopID string) ([]domain.Guardian, error)
}

// SessionStore holds the per-vehicle tracking session.
// Get returns (nil, nil) when the vehicle has no session.
type SessionStore interface {
	Get(ctx context.Context, vehicleID string) (*domain.TrackingSession, error)
	Save(ctx context.Context, sess *domain.TrackingSession) error
	Delete(ctx context.Context, vehicleID string) error
}
