package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/samirrijal/bustrack/internal/adapters/googlemaps"
	"github.com/samirrijal/bustrack/internal/adapters/kafka"
	natsadapter "github.com/samirrijal/bustrack/internal/adapters/nats"
	"github.com/samirrijal/bustrack/internal/adapters/postgres"
	"github.com/samirrijal/bustrack/internal/adapters/temporal"
	"github.com/samirrijal/bustrack/internal/adapters/valkey"
	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/core/ports"
	"github.com/samirrijal/bustrack/internal/core/tracking"
	"github.com/samirrijal/bustrack/internal/core/usecases"
	"github.com/samirrijal/bustrack/internal/pkg/config"
	"github.com/samirrijal/bustrack/internal/pkg/logging"
	"github.com/samirrijal/bustrack/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("bustrack-tracker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolStats(ctx, 15*time.Second)

	// Sessions must be shared with the API, so Valkey is required here.
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	var routing ports.RoutingService
	if cfg.Maps.Enabled {
		router, err := googlemaps.New(cfg.Maps.APIKey)
		if err != nil {
			slog.Warn("google maps unavailable", "error", err)
		} else {
			routing = router
		}
	}

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

	vehicleRepo := postgres.NewVehiclePositionRepo(db)
	routeSvc := usecases.NewRouteService(postgres.NewRouteRepo(db), vehicleRepo, cache, routing)
	trackingSvc := usecases.NewTrackingService(usecases.TrackingDeps{
		Routes:    routeSvc,
		Sessions:  valkey.NewSessionStore(cache, time.Duration(cfg.Tracking.SessionTTL)*time.Second),
		Vehicles:  vehicleRepo,
		Cache:     cache,
		Publisher: pub,
		Notifier:  notifier,
		Routing:   routing,
	}, usecases.TrackingConfig{
		Estimator: tracking.Config{
			OnRouteThresholdMeters: cfg.Tracking.OnRouteThresholdMeters,
			AdvanceThresholdKm:     cfg.Tracking.AdvanceThresholdKm,
			AssumedSpeedKmph:       cfg.Tracking.AssumedSpeedKmph,
		},
		SnapshotTTL:       time.Duration(cfg.Tracking.SnapshotTTL) * time.Second,
		EnrichmentTimeout: time.Duration(cfg.Tracking.EnrichmentTimeout) * time.Second,
	})

	handle := fixHandler(trackingSvc)

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()
	if err := sub.SubscribeFixes(ctx, handle); err != nil {
		log.Fatalf("subscribe fixes: %v", err)
	}
	slog.Info("consuming fixes from nats", "subjects", natsadapter.FixSubjects)

	done := make(chan struct{})
	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err := kafka.NewConsumer(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		go func() {
			defer close(done)
			defer consumer.Close()
			slog.Info("consuming device fixes from kafka", "topic", cfg.Kafka.Topic)
			if err := consumer.Run(ctx, handle); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("kafka consumer stopped", "error", err)
			}
		}()
	} else {
		close(done)
	}

	<-ctx.Done()
	slog.Info("shutdown signal received, draining consumers...")
	<-done
	trackingSvc.Wait()
	slog.Info("tracker stopped")
}

// fixHandler processes one fix. Rejections that a retry cannot fix are
// logged and acknowledged; anything else is returned for redelivery.
func fixHandler(svc *usecases.TrackingService) func(ctx context.Context, fix *domain.VehicleFix) error {
	return func(ctx context.Context, fix *domain.VehicleFix) error {
		snap, err := svc.ProcessFix(ctx, *fix)
		switch {
		case err == nil:
			slog.Debug("fix processed",
				"vehicle_id", snap.VehicleID,
				"route_id", snap.RouteID,
				"status", snap.Progress.Status,
				"next_stop_index", snap.NextStopIndex,
			)
			return nil
		case errors.Is(err, usecases.ErrStaleFix),
			errors.Is(err, usecases.ErrNoRoute),
			errors.Is(err, domain.ErrInvalidInput),
			errors.Is(err, domain.ErrNotFound):
			slog.Warn("fix rejected", "vehicle_id", fix.VehicleID, "source", fix.Source, "error", err)
			return nil
		default:
			slog.Error("fix processing failed", "vehicle_id", fix.VehicleID, "error", err)
			return err
		}
	}
}
