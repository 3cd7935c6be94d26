package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

var errCacheMiss = errors.New("cache miss")

// --- Mock BusRouteRepository ---

type mockRouteRepo struct {
	upsertFn         func(ctx context.Context, route *domain.BusRoute) error
	getByIDFn        func(ctx context.Context, id string) (*domain.BusRoute, error)
	listFn           func(ctx context.Context, activeOnly bool) ([]domain.BusRoute, error)
	replaceStopsFn   func(ctx context.Context, routeID string, stops []domain.Stop) error
	listStopsFn      func(ctx context.Context, routeID string) ([]domain.Stop, error)
	updatePolylineFn func(ctx context.Context, routeID, encoded string) error
}

func (m *mockRouteRepo) Upsert(ctx context.Context, route *domain.BusRoute) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, route)
	}
	return nil
}

func (m *mockRouteRepo) GetByID(ctx context.Context, id string) (*domain.BusRoute, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &domain.BusRoute{ID: id, Name: "Route " + id}, nil
}

func (m *mockRouteRepo) List(ctx context.Context, activeOnly bool) ([]domain.BusRoute, error) {
	if m.listFn != nil {
		return m.listFn(ctx, activeOnly)
	}
	return nil, nil
}

func (m *mockRouteRepo) ReplaceStops(ctx context.Context, routeID string, stops []domain.Stop) error {
	if m.replaceStopsFn != nil {
		return m.replaceStopsFn(ctx, routeID, stops)
	}
	return nil
}

func (m *mockRouteRepo) ListStops(ctx context.Context, routeID string) ([]domain.Stop, error) {
	if m.listStopsFn != nil {
		return m.listStopsFn(ctx, routeID)
	}
	return nil, nil
}

func (m *mockRouteRepo) UpdatePolyline(ctx context.Context, routeID, encoded string) error {
	if m.updatePolylineFn != nil {
		return m.updatePolylineFn(ctx, routeID, encoded)
	}
	return nil
}

// --- Mock VehiclePositionRepository ---

type mockVehicleRepo struct {
	mu              sync.Mutex
	inserted        []domain.VehiclePosition
	insertErr       error
	latestByRouteFn func(ctx context.Context, routeID string) ([]domain.VehiclePosition, error)
}

func (m *mockVehicleRepo) Insert(ctx context.Context, vp *domain.VehiclePosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, *vp)
	return nil
}

func (m *mockVehicleRepo) LatestByRoute(ctx context.Context, routeID string) ([]domain.VehiclePosition, error) {
	if m.latestByRouteFn != nil {
		return m.latestByRouteFn(ctx, routeID)
	}
	return nil, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu        sync.Mutex
	data      map[string][]byte
	deleted   []string
	setErr    error
	deleteErr error
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

// --- Mock SessionStore ---

type mockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.TrackingSession
	saveErr  error
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]domain.TrackingSession)}
}

func (m *mockSessionStore) Get(ctx context.Context, vehicleID string) (*domain.TrackingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[vehicleID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (m *mockSessionStore) Save(ctx context.Context, sess *domain.TrackingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sessions[sess.VehicleID] = *sess
	return nil
}

func (m *mockSessionStore) Delete(ctx context.Context, vehicleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, vehicleID)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu          sync.Mutex
	progress    []domain.TrackingSnapshot
	arrivals    []domain.StopArrival
	fixes       []domain.VehicleFix
	progressErr error
}

func (m *mockPublisher) PublishFix(ctx context.Context, fix *domain.VehicleFix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixes = append(m.fixes, *fix)
	return nil
}

func (m *mockPublisher) PublishProgress(ctx context.Context, snap *domain.TrackingSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.progressErr != nil {
		return m.progressErr
	}
	m.progress = append(m.progress, *snap)
	return nil
}

func (m *mockPublisher) PublishArrival(ctx context.Context, arrival *domain.StopArrival) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arrivals = append(m.arrivals, *arrival)
	return nil
}

func (m *mockPublisher) progressCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.progress)
}

// --- Mock ArrivalNotifier ---

type mockNotifier struct {
	mu       sync.Mutex
	notified []domain.StopArrival
}

func (m *mockNotifier) NotifyArrival(ctx context.Context, arrival *domain.StopArrival) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, *arrival)
	return nil
}

// --- Mock RoutingService ---

type mockRouting struct {
	distanceToStopFn func(ctx context.Context, pos domain.Position, stop domain.Stop) (*domain.Enrichment, error)
	routePolylineFn  func(ctx context.Context, stops []domain.Stop) (string, error)
}

func (m *mockRouting) DistanceToStop(ctx context.Context, pos domain.Position, stop domain.Stop) (*domain.Enrichment, error) {
	if m.distanceToStopFn != nil {
		return m.distanceToStopFn(ctx, pos, stop)
	}
	return nil, errors.New("not configured")
}

func (m *mockRouting) RoutePolyline(ctx context.Context, stops []domain.Stop) (string, error) {
	if m.routePolylineFn != nil {
		return m.routePolylineFn(ctx, stops)
	}
	return "", errors.New("not configured")
}

// equatorStops is a 22 km route of four stops along the equator.
func equatorStops() []domain.Stop {
	return []domain.Stop{
		{ID: "s0", Name: "Depot", DistanceKm: 0, Lat: 0, Lng: 0},
		{ID: "s1", Name: "Market", DistanceKm: 5.559746, Lat: 0, Lng: 0.05},
		{ID: "s2", Name: "Library", DistanceKm: 11.119493, Lat: 0, Lng: 0.1},
		{ID: "s3", Name: "School", DistanceKm: 22.238985, Lat: 0, Lng: 0.2},
	}
}
