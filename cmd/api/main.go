package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/samirrijal/bustrack/internal/adapters/googlemaps"
	"github.com/samirrijal/bustrack/internal/adapters/http"
	"github.com/samirrijal/bustrack/internal/adapters/memory"
	natsadapter "github.com/samirrijal/bustrack/internal/adapters/nats"
	"github.com/samirrijal/bustrack/internal/adapters/postgres"
	"github.com/samirrijal/bustrack/internal/adapters/temporal"
	"github.com/samirrijal/bustrack/internal/adapters/valkey"
	"github.com/samirrijal/bustrack/internal/core/ports"
	"github.com/samirrijal/bustrack/internal/core/tracking"
	"github.com/samirrijal/bustrack/internal/core/usecases"
	"github.com/samirrijal/bustrack/internal/pkg/config"
	"github.com/samirrijal/bustrack/internal/pkg/logging"
	"github.com/samirrijal/bustrack/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("bustrack-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	// Cache and sessions. Without Valkey, state lives in this process only.
	var cacheSvc ports.CacheService = memory.NewCache()
	var sessions ports.SessionStore = memory.NewSessionStore()
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, using in-process cache", "error", err)
		cache = nil
	} else {
		defer cache.Close()
		cacheSvc = cache
		sessions = valkey.NewSessionStore(cache, time.Duration(cfg.Tracking.SessionTTL)*time.Second)
	}

	// NATS
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	// Google Maps
	var routing ports.RoutingService
	if cfg.Maps.Enabled {
		router, err := googlemaps.New(cfg.Maps.APIKey)
		if err != nil {
			slog.Warn("google maps unavailable", "error", err)
		} else {
			routing = router
		}
	}

	// Temporal
	var notifier ports.ArrivalNotifier
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			Logger:    tlog.NewStructuredLogger(slog.Default()),
		})
		if err != nil {
			slog.Warn("temporal unavailable, arrival notifications disabled", "error", err)
		} else {
			defer tc.Close()
			notifier = temporal.NewNotifier(tc, cfg.Temporal.TaskQueue)
		}
	}

	// Repos
	routeRepo := postgres.NewRouteRepo(db)
	vehicleRepo := postgres.NewVehiclePositionRepo(db)

	// Use cases
	routeSvc := usecases.NewRouteService(routeRepo, vehicleRepo, cacheSvc, routing)
	trackingSvc := usecases.NewTrackingService(usecases.TrackingDeps{
		Routes:    routeSvc,
		Sessions:  sessions,
		Vehicles:  vehicleRepo,
		Cache:     cacheSvc,
		Publisher: publisher,
		Notifier:  notifier,
		Routing:   routing,
	}, trackingConfig(cfg.Tracking))

	deps := &http.Dependencies{
		Routes:   routeSvc,
		Tracking: trackingSvc,
		NATS:     natsConn,
		DB:       db,
		Cache:    cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Bustrack API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	trackingSvc.Wait()

	slog.Info("server stopped")
}

func trackingConfig(c config.TrackingConfig) usecases.TrackingConfig {
	return usecases.TrackingConfig{
		Estimator: tracking.Config{
			OnRouteThresholdMeters: c.OnRouteThresholdMeters,
			AdvanceThresholdKm:     c.AdvanceThresholdKm,
			AssumedSpeedKmph:       c.AssumedSpeedKmph,
		},
		SnapshotTTL:       time.Duration(c.SnapshotTTL) * time.Second,
		EnrichmentTimeout: time.Duration(c.EnrichmentTimeout) * time.Second,
	}
}
