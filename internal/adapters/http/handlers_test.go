package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/bustrack/internal/adapters/http"
	"github.com/samirrijal/bustrack/internal/adapters/memory"
	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/core/usecases"
)

// ---- Mock repositories ----

type mockVehicleRepo struct {
	latestByRouteFn func(ctx context.Context, routeID string) ([]domain.VehiclePosition, error)
}

func (m *mockVehicleRepo) Insert(ctx context.Context, vp *domain.VehiclePosition) error { return nil }
func (m *mockVehicleRepo) LatestByRoute(ctx context.Context, routeID string) ([]domain.VehiclePosition, error) {
	if m.latestByRouteFn != nil {
		return m.latestByRouteFn(ctx, routeID)
	}
	return nil, nil
}

// ---- Test helpers ----

func equatorStops() []domain.Stop {
	return []domain.Stop{
		{ID: "s0", Name: "Depot", DistanceKm: 0, Lat: 0, Lng: 0},
		{ID: "s1", Name: "Market", DistanceKm: 5.559746, Lat: 0, Lng: 0.05},
		{ID: "s2", Name: "Library", DistanceKm: 11.119493, Lat: 0, Lng: 0.1},
		{ID: "s3", Name: "School", DistanceKm: 22.238985, Lat: 0, Lng: 0.2},
	}
}

// seededRoutes returns a repository holding route r1 with four stops.
func seededRoutes(t *testing.T) *memory.RouteRepo {
	t.Helper()
	ctx := context.Background()
	repo := memory.NewRouteRepo()
	if err := repo.Upsert(ctx, &domain.BusRoute{ID: "r1", Code: "EQ", Name: "Equator", Active: true,
		EncodedPolyline: "_p~iF~ps|U_ulLnnqC_mqNvxq`@"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.ReplaceStops(ctx, "r1", equatorStops()); err != nil {
		t.Fatal(err)
	}
	return repo
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(t *testing.T, opts ...func(*handler.Dependencies)) *handler.Dependencies {
	routes := usecases.NewRouteService(seededRoutes(t), &mockVehicleRepo{}, memory.NewCache(), nil)
	d := &handler.Dependencies{
		Routes: routes,
		Tracking: usecases.NewTrackingService(usecases.TrackingDeps{
			Routes:   routes,
			Sessions: memory.NewSessionStore(),
			Cache:    memory.NewCache(),
		}, usecases.TrackingConfig{}),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, readBody(t, resp.Body)
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var apiErr handler.APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return apiErr.Code
}

// ---- Route handler tests ----

func TestListRoutes_Pagination(t *testing.T) {
	repo := memory.NewRouteRepo()
	for i := 0; i < 5; i++ {
		_ = repo.Upsert(context.Background(), &domain.BusRoute{ID: fmt.Sprintf("r%d", i), Code: fmt.Sprintf("R%d", i), Name: "Route", Active: i != 4})
	}
	deps := makeDeps(t, func(d *handler.Dependencies) {
		d.Routes = usecases.NewRouteService(repo, nil, nil, nil)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/routes?offset=2&limit=2", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.BusRoute `json:"data"`
		Pagination struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
			Total  int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 5 {
		t.Errorf("expected total 5, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 || result.Data[0].Code != "R2" {
		t.Errorf("unexpected page %+v", result.Data)
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, `rel="next"`) {
		t.Errorf("expected next link, got %q", link)
	}
}

func TestListRoutes_ActiveOnly(t *testing.T) {
	repo := memory.NewRouteRepo()
	_ = repo.Upsert(context.Background(), &domain.BusRoute{ID: "a", Code: "A", Name: "A", Active: true})
	_ = repo.Upsert(context.Background(), &domain.BusRoute{ID: "b", Code: "B", Name: "B"})
	deps := makeDeps(t, func(d *handler.Dependencies) {
		d.Routes = usecases.NewRouteService(repo, nil, nil, nil)
	})

	status, body := doJSON(t, setupApp(deps), "GET", "/v1/routes?active=true", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var result struct {
		Data []domain.BusRoute `json:"data"`
	}
	_ = json.Unmarshal(body, &result)
	if len(result.Data) != 1 || result.Data[0].ID != "a" {
		t.Errorf("expected only route a, got %+v", result.Data)
	}
}

func TestGetRoute_NotFound(t *testing.T) {
	status, body := doJSON(t, setupApp(makeDeps(t)), "GET", "/v1/routes/missing", "")
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	if code := errorCode(t, body); code != "not_found" {
		t.Errorf("expected not_found, got %s", code)
	}
}

func TestRouteStops_Success(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/v1/routes/r1/stops", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=600" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}

	var stops []domain.Stop
	json.NewDecoder(resp.Body).Decode(&stops)
	if len(stops) != 4 || stops[0].ID != "s0" || stops[3].ID != "s3" {
		t.Errorf("unexpected stops %+v", stops)
	}
}

func TestRoutePath_Stored(t *testing.T) {
	status, body := doJSON(t, setupApp(makeDeps(t)), "GET", "/v1/routes/r1/path", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var path domain.RoutePath
	if err := json.Unmarshal(body, &path); err != nil {
		t.Fatal(err)
	}
	if path.Source != "stored" || len(path.Coordinates) != 3 {
		t.Errorf("unexpected path %+v", path)
	}
}

func TestRouteVehicles_EmptyList(t *testing.T) {
	status, body := doJSON(t, setupApp(makeDeps(t)), "GET", "/v1/routes/r1/vehicles", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("expected empty JSON array, got %s", body)
	}
}

// ---- Tracking handler tests ----

func TestSubmitFix_OnRoute(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body := doJSON(t, app, "POST", "/v1/vehicles/bus-7/fixes",
		`{"route_id":"r1","lat":0,"lng":0.02,"time":"2026-09-01T07:30:00Z"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var snap domain.TrackingSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Progress.Status != domain.StatusOnRoute {
		t.Errorf("expected on_route, got %s", snap.Progress.Status)
	}
	if snap.Progress.NextStop == nil || snap.Progress.NextStop.ID != "s1" {
		t.Errorf("expected next stop s1, got %+v", snap.Progress.NextStop)
	}
	if !snap.Progress.ETA.Available || snap.Progress.ETA.Minutes != 6 {
		t.Errorf("expected 6 minute ETA, got %+v", snap.Progress.ETA)
	}

	status, body = doJSON(t, app, "GET", "/v1/vehicles/bus-7/progress", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var cached domain.TrackingSnapshot
	_ = json.Unmarshal(body, &cached)
	if cached.VehicleID != "bus-7" || cached.RouteID != "r1" {
		t.Errorf("unexpected cached snapshot %+v", cached)
	}
}

func TestSubmitFix_StaleFixConflict(t *testing.T) {
	app := setupApp(makeDeps(t))

	doJSON(t, app, "POST", "/v1/vehicles/bus-7/fixes", `{"route_id":"r1","lat":0,"lng":0.02,"time":"2026-09-01T07:30:00Z"}`)
	status, body := doJSON(t, app, "POST", "/v1/vehicles/bus-7/fixes", `{"route_id":"r1","lat":0,"lng":0.03,"time":"2026-09-01T07:29:00Z"}`)
	if status != 409 {
		t.Fatalf("expected 409, got %d", status)
	}
	if code := errorCode(t, body); code != "conflict" {
		t.Errorf("expected conflict, got %s", code)
	}
}

func TestSubmitFix_NoRoute(t *testing.T) {
	status, body := doJSON(t, setupApp(makeDeps(t)), "POST", "/v1/vehicles/bus-7/fixes", `{"lat":0,"lng":0.02}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	if code := errorCode(t, body); code != "bad_request" {
		t.Errorf("expected bad_request, got %s", code)
	}
}

func TestSubmitFix_InvalidCoordinates(t *testing.T) {
	status, _ := doJSON(t, setupApp(makeDeps(t)), "POST", "/v1/vehicles/bus-7/fixes", `{"route_id":"r1","lat":120,"lng":0}`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestSubmitFix_NoFixIsAState(t *testing.T) {
	status, body := doJSON(t, setupApp(makeDeps(t)), "POST", "/v1/vehicles/bus-7/fixes", `{"route_id":"r1","lat":0,"lng":0}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var snap domain.TrackingSnapshot
	_ = json.Unmarshal(body, &snap)
	if snap.Progress.Status != domain.StatusNoFix || snap.Progress.ProgressRatio != 0 {
		t.Errorf("expected no_fix with zero progress, got %+v", snap.Progress)
	}
}

func TestSubmitFix_UnknownRoute(t *testing.T) {
	status, _ := doJSON(t, setupApp(makeDeps(t)), "POST", "/v1/vehicles/bus-7/fixes", `{"route_id":"nope","lat":0,"lng":0.02}`)
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestSubmitFix_TrackingDisabled(t *testing.T) {
	deps := makeDeps(t, func(d *handler.Dependencies) { d.Tracking = nil })
	status, _ := doJSON(t, setupApp(deps), "POST", "/v1/vehicles/bus-7/fixes", `{"route_id":"r1","lat":0,"lng":0.02}`)
	if status != 503 {
		t.Fatalf("expected 503, got %d", status)
	}
}

func TestVehicleProgress_Missing(t *testing.T) {
	app := setupApp(makeDeps(t))

	req := httptest.NewRequest("GET", "/v1/vehicles/ghost/progress", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected no-store, got %q", cc)
	}
}

func TestStartSession(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body := doJSON(t, app, "PUT", "/v1/vehicles/bus-7/session", `{"route_id":"r1"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var sess domain.TrackingSession
	_ = json.Unmarshal(body, &sess)
	if sess.RouteID != "r1" || sess.NextStopIndex != 0 {
		t.Errorf("unexpected session %+v", sess)
	}

	if status, _ := doJSON(t, app, "PUT", "/v1/vehicles/bus-7/session", `{}`); status != 400 {
		t.Errorf("expected 400 without route_id, got %d", status)
	}
	if status, _ := doJSON(t, app, "PUT", "/v1/vehicles/bus-7/session", `{"route_id":"nope"}`); status != 404 {
		t.Errorf("expected 404 for unknown route, got %d", status)
	}
}

// ---- Polyline tests ----

func TestDecodePolyline(t *testing.T) {
	status, body := doJSON(t, setupApp(makeDeps(t)), "POST", "/v1/polyline/decode", `{"polyline":"_p~iF~ps|U_ulLnnqC_mqNvxq`+"`"+`@"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var resp struct {
		Coordinates []domain.Coordinate `json:"coordinates"`
		Partial     bool                `json:"partial"`
	}
	_ = json.Unmarshal(body, &resp)
	if len(resp.Coordinates) != 3 || resp.Partial {
		t.Fatalf("unexpected response %s", body)
	}
	if resp.Coordinates[2].Lat != 43.252 || resp.Coordinates[2].Lng != -126.453 {
		t.Errorf("unexpected last point %+v", resp.Coordinates[2])
	}
}

func TestDecodePolyline_Malformed(t *testing.T) {
	status, body := doJSON(t, setupApp(makeDeps(t)), "POST", "/v1/polyline/decode", `{"polyline":"_p~iF~ps|U_"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var resp struct {
		Coordinates []domain.Coordinate `json:"coordinates"`
		Partial     bool                `json:"partial"`
		Error       string              `json:"error"`
	}
	_ = json.Unmarshal(body, &resp)
	if !resp.Partial || len(resp.Coordinates) != 1 || resp.Error == "" {
		t.Errorf("expected one partial coordinate with an error, got %s", body)
	}
}

// ---- GraphQL tests ----

func TestGraphQL_RouteStops(t *testing.T) {
	query := `{"query":"{ routeStops(route_id: \"r1\") { id distance_km } }"}`
	status, body := doJSON(t, setupApp(makeDeps(t)), "POST", "/graphql", query)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}

	var result struct {
		Data struct {
			RouteStops []struct {
				ID         string  `json:"id"`
				DistanceKm float64 `json:"distance_km"`
			} `json:"routeStops"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Data.RouteStops) != 4 || result.Data.RouteStops[3].DistanceKm != 22.238985 {
		t.Errorf("unexpected stops %+v", result.Data.RouteStops)
	}
}

func TestGraphQL_InvalidBody(t *testing.T) {
	status, _ := doJSON(t, setupApp(makeDeps(t)), "POST", "/graphql", `{not json`)
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
}

// ---- Health tests ----

func TestHealth(t *testing.T) {
	status, body := doJSON(t, setupApp(makeDeps(t)), "GET", "/v1/health", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"healthy"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestReady_WithoutDatabase(t *testing.T) {
	status, body := doJSON(t, setupApp(makeDeps(t)), "GET", "/v1/ready", "")
	if status != 503 {
		t.Fatalf("expected 503, got %d", status)
	}
	var result struct {
		Checks map[string]string `json:"checks"`
	}
	_ = json.Unmarshal(body, &result)
	if result.Checks["database"] != "not configured" || result.Checks["cache"] != "not configured" {
		t.Errorf("unexpected checks %v", result.Checks)
	}
}

func TestETag_NotModified(t *testing.T) {
	app := setupApp(makeDeps(t))

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/routes/r1", nil), -1)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req := httptest.NewRequest("GET", "/v1/routes/r1", nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	status, _ := doJSON(t, setupApp(makeDeps(t)), "GET", "/ws", "")
	if status != fiber.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", status)
	}
}
