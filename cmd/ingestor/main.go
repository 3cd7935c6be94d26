package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samirrijal/bustrack/internal/adapters/googlemaps"
	"github.com/samirrijal/bustrack/internal/adapters/postgres"
	"github.com/samirrijal/bustrack/internal/core/usecases"
	"github.com/samirrijal/bustrack/internal/pkg/config"
	"github.com/samirrijal/bustrack/internal/pkg/logging"
	"github.com/samirrijal/bustrack/internal/pkg/routefile"
)

const maxConcurrentImports = 4

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: ingestor <route.yaml|dir> [...]")
	}

	cfg, err := config.Load("bustrack-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var router *googlemaps.Router
	if cfg.Maps.Enabled {
		router, err = googlemaps.New(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("google maps: %v", err)
		}
	}

	svc := usecases.NewRouteService(postgres.NewRouteRepo(db), nil, nil, nil)

	files, err := expand(os.Args[1:])
	if err != nil {
		log.Fatalf("list route files: %v", err)
	}

	slog.Info("importing routes", "files", len(files), "directions", router != nil)
	start := time.Now()

	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	sem := make(chan struct{}, maxConcurrentImports)

	for _, f := range files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := importFile(ctx, svc, router, path); err != nil {
				failed.Add(1)
				slog.Error("import failed", "file", path, "error", err)
			}
		}(f)
	}
	wg.Wait()

	slog.Info("import finished",
		"files", len(files),
		"failed", failed.Load(),
		"duration", time.Since(start).String(),
	)
	if failed.Load() > 0 {
		os.Exit(1)
	}
}

// importFile loads one route file and stores it. When a router is given and
// the file has no polyline, the driving path through the stops is fetched.
func importFile(ctx context.Context, svc *usecases.RouteService, router *googlemaps.Router, path string) error {
	rf, err := routefile.LoadRoute(path)
	if err != nil {
		return err
	}

	route := rf.Route
	if route.EncodedPolyline == "" && router != nil {
		encoded, err := router.RoutePolyline(ctx, rf.Stops)
		if err != nil {
			slog.Warn("directions unavailable, importing without polyline", "route_id", route.ID, "error", err)
		} else {
			route.EncodedPolyline = encoded
		}
	}

	stops, err := svc.Import(ctx, &route, rf.Stops)
	if err != nil {
		return err
	}

	slog.Info("route imported",
		"route_id", route.ID,
		"stops", len(stops),
		"length_km", stops[len(stops)-1].DistanceKm,
	)
	return nil
}

// expand replaces directory arguments with the YAML files they contain.
func expand(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(arg, pattern))
			if err != nil {
				return nil, err
			}
			files = append(files, matches...)
		}
	}
	return files, nil
}
