package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/core/ports"
	"github.com/samirrijal/bustrack/internal/core/tracking"
	"github.com/samirrijal/bustrack/internal/pkg/metrics"
)

var (
	// ErrStaleFix is returned for a fix older than the last one processed for the vehicle.
	ErrStaleFix = errors.New("stale fix")
	// ErrNoSnapshot is returned when a vehicle has not reported yet.
	ErrNoSnapshot = errors.New("no tracking snapshot")
	// ErrNoRoute is returned for a fix that names no route while the vehicle has no session.
	ErrNoRoute = errors.New("vehicle has no route")
)

var tracer = otel.Tracer("github.com/samirrijal/bustrack/internal/core/usecases")

// TrackingConfig tunes the TrackingService.
type TrackingConfig struct {
	Estimator         tracking.Config
	SnapshotTTL       time.Duration
	EnrichmentTimeout time.Duration
}

// TrackingDeps are the collaborators of a TrackingService. Only Routes and
// Sessions are required.
type TrackingDeps struct {
	Routes    *RouteService
	Sessions  ports.SessionStore
	Vehicles  ports.VehiclePositionRepository
	Cache     ports.CacheService
	Publisher ports.EventPublisher
	Notifier  ports.ArrivalNotifier
	Routing   ports.RoutingService
}

// TrackingService turns GPS fixes into route progress snapshots.
type TrackingService struct {
	deps  TrackingDeps
	cfg   TrackingConfig
	locks *vehicleLocks
	wg    sync.WaitGroup
	now   func() time.Time
}

// NewTrackingService creates a new TrackingService.
func NewTrackingService(deps TrackingDeps, cfg TrackingConfig) *TrackingService {
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = time.Hour
	}
	if cfg.EnrichmentTimeout <= 0 {
		cfg.EnrichmentTimeout = 5 * time.Second
	}
	return &TrackingService{
		deps:  deps,
		cfg:   cfg,
		locks: newVehicleLocks(),
		now:   time.Now,
	}
}

func snapshotKey(vehicleID string) string {
	return "tracking:snapshot:" + vehicleID
}

// ProcessFix advances the vehicle's session with a new fix and returns the
// resulting snapshot. Fixes for one vehicle are processed one at a time.
// Persisting history, publishing and notifying are best-effort; the snapshot
// is returned without waiting for enrichment.
func (s *TrackingService) ProcessFix(ctx context.Context, fix domain.VehicleFix) (*domain.TrackingSnapshot, error) {
	ctx, span := tracer.Start(ctx, "TrackingService.ProcessFix")
	defer span.End()
	span.SetAttributes(
		attribute.String("vehicle.id", fix.VehicleID),
		attribute.String("fix.source", string(fix.Source)),
	)

	if err := tracking.ValidateFix(fix); err != nil {
		metrics.FixesRejected.WithLabelValues("invalid").Inc()
		return nil, err
	}

	unlock := s.locks.Lock(fix.VehicleID)
	defer unlock()

	sess, err := s.deps.Sessions.Get(ctx, fix.VehicleID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load session: %w", err)
	}

	routeID := fix.RouteID
	if routeID == "" && sess != nil {
		routeID = sess.RouteID
	}
	if routeID == "" {
		metrics.FixesRejected.WithLabelValues("no_route").Inc()
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, fix.VehicleID)
	}

	// A fix older than the last processed one is rejected even when it names
	// another route, so a redelivered fix cannot reset the live session.
	if sess != nil && !sess.LastFixAt.IsZero() && fix.Time.Before(sess.LastFixAt) {
		metrics.FixesRejected.WithLabelValues("stale").Inc()
		return nil, fmt.Errorf("%w: %s at %s is older than %s", ErrStaleFix,
			fix.VehicleID, fix.Time.Format(time.RFC3339), sess.LastFixAt.Format(time.RFC3339))
	}
	if sess == nil || sess.RouteID != routeID {
		sess = tracking.NewSession(fix.VehicleID, routeID, s.now())
		slog.Info("tracking session started", "vehicle_id", fix.VehicleID, "route_id", routeID)
	}
	span.SetAttributes(attribute.String("route.id", routeID))

	stops, err := s.deps.Routes.ListStops(ctx, routeID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	progress, arrived := tracking.Observe(sess, stops, fix.Position, s.cfg.Estimator)
	sess.LastFixAt = fix.Time

	if err := s.deps.Sessions.Save(ctx, sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("save session: %w", err)
	}

	snap := &domain.TrackingSnapshot{
		VehicleID:     fix.VehicleID,
		RouteID:       routeID,
		FixTime:       fix.Time,
		Position:      fix.Position,
		Progress:      progress,
		NextStopIndex: sess.NextStopIndex,
		Arrived:       arrived,
		TripComplete:  tracking.TripComplete(sess, stops),
		UpdatedAt:     s.now().UTC(),
	}

	metrics.FixesProcessed.WithLabelValues(string(fix.Source)).Inc()
	if progress.Status == domain.StatusOffRoute {
		metrics.OffRouteFixes.WithLabelValues(routeID).Inc()
	}

	s.storeSnapshot(ctx, snap)
	s.recordPosition(ctx, fix, routeID, progress)
	s.publishProgress(ctx, snap)

	if arrived != nil {
		s.handleArrival(ctx, &domain.StopArrival{
			VehicleID: fix.VehicleID,
			RouteID:   routeID,
			Stop:      *arrived,
			StopIndex: sess.NextStopIndex - 1,
			Time:      fix.Time,
		})
	}

	s.enrichAsync(*snap)
	return snap, nil
}

// Snapshot returns the latest snapshot of a vehicle.
func (s *TrackingService) Snapshot(ctx context.Context, vehicleID string) (*domain.TrackingSnapshot, error) {
	if s.deps.Cache == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, vehicleID)
	}
	data, err := s.deps.Cache.Get(ctx, snapshotKey(vehicleID))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, vehicleID)
	}
	var snap domain.TrackingSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// StartSession begins a new trip for a vehicle on routeID, discarding the
// previous session and snapshot.
func (s *TrackingService) StartSession(ctx context.Context, vehicleID, routeID string) (*domain.TrackingSession, error) {
	if vehicleID == "" || routeID == "" {
		return nil, fmt.Errorf("%w: vehicle and route are required", domain.ErrInvalidInput)
	}
	if _, err := s.deps.Routes.GetByID(ctx, routeID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(vehicleID)
	defer unlock()

	sess := tracking.NewSession(vehicleID, routeID, s.now())
	if err := s.deps.Sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Delete(ctx, snapshotKey(vehicleID)); err != nil {
			slog.Warn("failed to clear snapshot", "vehicle_id", vehicleID, "error", err)
		}
	}
	slog.Info("tracking session reset", "vehicle_id", vehicleID, "route_id", routeID)
	return sess, nil
}

// Wait blocks until all in-flight enrichment calls have finished.
func (s *TrackingService) Wait() {
	s.wg.Wait()
}

func (s *TrackingService) storeSnapshot(ctx context.Context, snap *domain.TrackingSnapshot) {
	if s.deps.Cache == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		slog.Error("failed to encode snapshot", "vehicle_id", snap.VehicleID, "error", err)
		return
	}
	if err := s.deps.Cache.Set(ctx, snapshotKey(snap.VehicleID), data, int(s.cfg.SnapshotTTL.Seconds())); err != nil {
		slog.Warn("failed to cache snapshot", "vehicle_id", snap.VehicleID, "error", err)
	}
}

func (s *TrackingService) recordPosition(ctx context.Context, fix domain.VehicleFix, routeID string, p domain.RouteProgress) {
	if s.deps.Vehicles == nil || p.Status == domain.StatusNoFix {
		return
	}
	vp := &domain.VehiclePosition{
		Time:          fix.Time,
		VehicleID:     fix.VehicleID,
		RouteID:       routeID,
		Position:      fix.Position,
		Speed:         fix.Speed,
		Bearing:       fix.Bearing,
		ProgressRatio: p.ProgressRatio,
		OnRoute:       p.OnRoute,
		Source:        fix.Source,
	}
	if p.NextStop != nil {
		vp.NextStopID = p.NextStop.ID
	}
	if err := s.deps.Vehicles.Insert(ctx, vp); err != nil {
		slog.Warn("failed to record vehicle position", "vehicle_id", fix.VehicleID, "error", err)
	}
}

func (s *TrackingService) publishProgress(ctx context.Context, snap *domain.TrackingSnapshot) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.PublishProgress(ctx, snap); err != nil {
		slog.Warn("failed to publish progress", "vehicle_id", snap.VehicleID, "error", err)
	}
}

func (s *TrackingService) handleArrival(ctx context.Context, arrival *domain.StopArrival) {
	metrics.StopArrivals.WithLabelValues(arrival.RouteID).Inc()
	slog.Info("stop reached",
		"vehicle_id", arrival.VehicleID,
		"route_id", arrival.RouteID,
		"stop_id", arrival.Stop.ID,
		"stop_index", arrival.StopIndex,
	)

	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishArrival(ctx, arrival); err != nil {
			slog.Warn("failed to publish arrival", "vehicle_id", arrival.VehicleID, "error", err)
		}
	}
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.NotifyArrival(ctx, arrival); err != nil {
			slog.Warn("failed to notify arrival", "vehicle_id", arrival.VehicleID, "stop_id", arrival.Stop.ID, "error", err)
		}
	}
}

// enrichAsync asks the routing service for a better ETA and merges it into
// the cached snapshot, unless a newer fix has replaced it in the meantime.
func (s *TrackingService) enrichAsync(snap domain.TrackingSnapshot) {
	if s.deps.Routing == nil || s.deps.Cache == nil || snap.Progress.NextStop == nil || !snap.Progress.ETA.Available {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.EnrichmentTimeout)
		defer cancel()

		start := time.Now()
		enrichment, err := s.deps.Routing.DistanceToStop(ctx, snap.Position, *snap.Progress.NextStop)
		metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.EnrichmentErrors.Inc()
			slog.Warn("eta enrichment failed", "vehicle_id", snap.VehicleID, "error", err)
			return
		}

		unlock := s.locks.Lock(snap.VehicleID)
		defer unlock()

		latest, err := s.Snapshot(ctx, snap.VehicleID)
		if err != nil || !latest.FixTime.Equal(snap.FixTime) {
			return
		}
		latest.Progress = tracking.MergeEnrichment(latest.Progress, enrichment)
		latest.UpdatedAt = s.now().UTC()

		s.storeSnapshot(ctx, latest)
		s.publishProgress(ctx, latest)
	}()
}
