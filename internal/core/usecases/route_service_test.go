package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/core/usecases"
)

func TestRouteService_GetByID(t *testing.T) {
	repo := &mockRouteRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.BusRoute, error) {
			return &domain.BusRoute{ID: id, Code: "N1", Name: "North loop"}, nil
		},
	}

	svc := usecases.NewRouteService(repo, &mockVehicleRepo{}, nil, nil)
	route, err := svc.GetByID(context.Background(), "route-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route.Code != "N1" {
		t.Errorf("expected N1, got %s", route.Code)
	}
}

func TestRouteService_List(t *testing.T) {
	repo := &mockRouteRepo{
		listFn: func(ctx context.Context, activeOnly bool) ([]domain.BusRoute, error) {
			if !activeOnly {
				t.Error("expected activeOnly to be passed through")
			}
			return []domain.BusRoute{{Code: "N1"}, {Code: "S2"}}, nil
		},
	}

	svc := usecases.NewRouteService(repo, nil, nil, nil)
	routes, err := svc.List(context.Background(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
}

func TestRouteService_GetLiveVehicles(t *testing.T) {
	vRepo := &mockVehicleRepo{
		latestByRouteFn: func(ctx context.Context, routeID string) ([]domain.VehiclePosition, error) {
			return []domain.VehiclePosition{
				{VehicleID: "bus-1", Position: domain.Position{Lat: 43.26, Lng: -2.93}},
			}, nil
		},
	}

	svc := usecases.NewRouteService(&mockRouteRepo{}, vRepo, nil, nil)
	vehicles, err := svc.GetLiveVehicles(context.Background(), "route-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vehicles) != 1 {
		t.Fatalf("expected 1 vehicle, got %d", len(vehicles))
	}
}

func TestRouteService_ListStops_Cached(t *testing.T) {
	calls := 0
	repo := &mockRouteRepo{
		listStopsFn: func(ctx context.Context, routeID string) ([]domain.Stop, error) {
			calls++
			return equatorStops(), nil
		},
	}
	cache := newMockCache()

	svc := usecases.NewRouteService(repo, nil, cache, nil)
	for i := 0; i < 3; i++ {
		stops, err := svc.ListStops(context.Background(), "r1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(stops) != 4 || stops[3].ID != "s3" {
			t.Fatalf("unexpected stops: %+v", stops)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 repository call, got %d", calls)
	}
	if _, ok := cache.data["routes:stops:r1"]; !ok {
		t.Error("expected stops to be cached under routes:stops:r1")
	}
}

func TestRouteService_ListStops_UnknownRoute(t *testing.T) {
	repo := &mockRouteRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.BusRoute, error) {
			return nil, domain.ErrNotFound
		},
	}

	svc := usecases.NewRouteService(repo, nil, nil, nil)
	_, err := svc.ListStops(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRouteService_ListStops_RouteWithoutStops(t *testing.T) {
	svc := usecases.NewRouteService(&mockRouteRepo{}, nil, nil, nil)
	stops, err := svc.ListStops(context.Background(), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stops == nil || len(stops) != 0 {
		t.Errorf("expected empty non-nil stops, got %#v", stops)
	}
}

func TestRouteService_GetPath_Stored(t *testing.T) {
	repo := &mockRouteRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.BusRoute, error) {
			return &domain.BusRoute{ID: id, Name: "Coast", EncodedPolyline: "_p~iF~ps|U_ulLnnqC_mqNvxq`@"}, nil
		},
	}

	svc := usecases.NewRouteService(repo, nil, newMockCache(), nil)
	path, err := svc.GetPath(context.Background(), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path.Source != usecases.PathSourceStored {
		t.Errorf("expected stored source, got %s", path.Source)
	}
	if len(path.Coordinates) != 3 || path.Partial {
		t.Fatalf("expected 3 complete coordinates, got %d partial=%v", len(path.Coordinates), path.Partial)
	}
	if path.Coordinates[0].Lat != 38.5 {
		t.Errorf("expected first lat 38.5, got %v", path.Coordinates[0].Lat)
	}
}

func TestRouteService_GetPath_FromDirections(t *testing.T) {
	var saved string
	repo := &mockRouteRepo{
		listStopsFn: func(ctx context.Context, routeID string) ([]domain.Stop, error) {
			return equatorStops(), nil
		},
		updatePolylineFn: func(ctx context.Context, routeID, encoded string) error {
			saved = encoded
			return nil
		},
	}
	routing := &mockRouting{
		routePolylineFn: func(ctx context.Context, stops []domain.Stop) (string, error) {
			if len(stops) != 4 {
				t.Errorf("expected 4 waypoints, got %d", len(stops))
			}
			return "_p~iF~ps|U_ulLnnqC", nil
		},
	}

	svc := usecases.NewRouteService(repo, nil, nil, routing)
	path, err := svc.GetPath(context.Background(), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path.Source != usecases.PathSourceDirections {
		t.Errorf("expected directions source, got %s", path.Source)
	}
	if saved != "_p~iF~ps|U_ulLnnqC" {
		t.Errorf("expected directions polyline to be stored, got %q", saved)
	}
	if len(path.Coordinates) != 2 {
		t.Errorf("expected 2 coordinates, got %d", len(path.Coordinates))
	}
}

func TestRouteService_GetPath_FallsBackToStops(t *testing.T) {
	repo := &mockRouteRepo{
		listStopsFn: func(ctx context.Context, routeID string) ([]domain.Stop, error) {
			return equatorStops(), nil
		},
		updatePolylineFn: func(ctx context.Context, routeID, encoded string) error {
			t.Error("stop-derived polyline must not be stored")
			return nil
		},
	}
	routing := &mockRouting{
		routePolylineFn: func(ctx context.Context, stops []domain.Stop) (string, error) {
			return "", errors.New("quota exceeded")
		},
	}

	svc := usecases.NewRouteService(repo, nil, nil, routing)
	path, err := svc.GetPath(context.Background(), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path.Source != usecases.PathSourceStops {
		t.Errorf("expected stops source, got %s", path.Source)
	}
	if len(path.Coordinates) != 4 || path.Coordinates[3].Lng != 0.2 {
		t.Errorf("unexpected coordinates: %+v", path.Coordinates)
	}
}

func TestRouteService_GetPath_Malformed(t *testing.T) {
	repo := &mockRouteRepo{
		getByIDFn: func(ctx context.Context, id string) (*domain.BusRoute, error) {
			return &domain.BusRoute{ID: id, Name: "Broken", EncodedPolyline: "_p~iF~ps|U_"}, nil
		},
	}
	cache := newMockCache()

	svc := usecases.NewRouteService(repo, nil, cache, nil)
	path, err := svc.GetPath(context.Background(), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !path.Partial || len(path.Coordinates) != 1 {
		t.Errorf("expected 1 partial coordinate, got %d partial=%v", len(path.Coordinates), path.Partial)
	}
	if _, ok := cache.data["routes:path:r1"]; ok {
		t.Error("partial path must not be cached")
	}
}

func TestRouteService_Import_FillsDistances(t *testing.T) {
	var stored []domain.Stop
	repo := &mockRouteRepo{
		replaceStopsFn: func(ctx context.Context, routeID string, stops []domain.Stop) error {
			stored = stops
			return nil
		},
	}
	cache := newMockCache()
	cache.data["routes:stops:r1"] = []byte("[]")

	input := equatorStops()
	for i := range input {
		input[i].DistanceKm = 0
	}

	svc := usecases.NewRouteService(repo, nil, cache, nil)
	got, err := svc.Import(context.Background(), &domain.BusRoute{ID: "r1", Name: "Equator"}, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored) != 4 || len(got) != 4 {
		t.Fatalf("expected 4 stored stops, got %d", len(stored))
	}
	if d := stored[3].DistanceKm; d < 22.2 || d > 22.3 {
		t.Errorf("expected ~22.24 km for the last stop, got %v", d)
	}
	if input[3].DistanceKm != 0 {
		t.Error("input stops must not be modified")
	}
	if _, ok := cache.data["routes:stops:r1"]; ok {
		t.Error("expected stops cache to be invalidated")
	}
}

func TestRouteService_Import_RejectsDecreasingDistances(t *testing.T) {
	repo := &mockRouteRepo{
		upsertFn: func(ctx context.Context, route *domain.BusRoute) error {
			t.Error("invalid route must not be stored")
			return nil
		},
	}

	stops := equatorStops()
	stops[2].DistanceKm = 1

	svc := usecases.NewRouteService(repo, nil, nil, nil)
	_, err := svc.Import(context.Background(), &domain.BusRoute{ID: "r1", Name: "Equator"}, stops)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRouteService_Import_ChangedStopsClearPolyline(t *testing.T) {
	var cleared []string
	repo := &mockRouteRepo{
		listStopsFn: func(ctx context.Context, routeID string) ([]domain.Stop, error) {
			return equatorStops(), nil
		},
		updatePolylineFn: func(ctx context.Context, routeID, encoded string) error {
			if encoded != "" {
				t.Errorf("expected the polyline to be cleared, got %q", encoded)
			}
			cleared = append(cleared, routeID)
			return nil
		},
	}

	stops := equatorStops()
	stops[2].Lng = 0.11
	stops[2].DistanceKm = 12.2

	svc := usecases.NewRouteService(repo, nil, nil, nil)
	if _, err := svc.Import(context.Background(), &domain.BusRoute{ID: "r1", Name: "Equator"}, stops); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cleared) != 1 || cleared[0] != "r1" {
		t.Errorf("expected polyline of r1 cleared once, got %v", cleared)
	}
}

func TestRouteService_Import_KeepsPolyline(t *testing.T) {
	tests := []struct {
		name     string
		polyline string
		modify   func([]domain.Stop)
	}{
		{"unchanged stops", "", func([]domain.Stop) {}},
		{"polyline supplied", "_p~iF~ps|U_ulLnnqC", func(s []domain.Stop) { s[2].Lng = 0.11; s[2].DistanceKm = 12.2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRouteRepo{
				listStopsFn: func(ctx context.Context, routeID string) ([]domain.Stop, error) {
					return equatorStops(), nil
				},
				updatePolylineFn: func(ctx context.Context, routeID, encoded string) error {
					t.Errorf("polyline must be kept, got update %q", encoded)
					return nil
				},
			}
			stops := equatorStops()
			tt.modify(stops)

			svc := usecases.NewRouteService(repo, nil, nil, nil)
			route := &domain.BusRoute{ID: "r1", Name: "Equator", EncodedPolyline: tt.polyline}
			if _, err := svc.Import(context.Background(), route, stops); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRouteService_CacheFailuresAreNotFatal(t *testing.T) {
	repo := &mockRouteRepo{
		listStopsFn: func(ctx context.Context, routeID string) ([]domain.Stop, error) {
			return equatorStops(), nil
		},
	}
	cache := newMockCache()
	cache.setErr = errors.New("valkey down")
	cache.deleteErr = errors.New("valkey down")

	svc := usecases.NewRouteService(repo, nil, cache, nil)
	stops, err := svc.ListStops(context.Background(), "r1")
	if err != nil || len(stops) != 4 {
		t.Fatalf("expected stops despite cache failure, got %d stops, err %v", len(stops), err)
	}
	if _, err := svc.GetPath(context.Background(), "r1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Import(context.Background(), &domain.BusRoute{ID: "r1", Name: "Equator"}, equatorStops()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
