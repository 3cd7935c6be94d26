package ports

import (
	"context"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

// EventPublisher publishes tracking events to a message broker.
type EventPublisher interface {
	PublishFix(ctx context.Context, fix *domain.VehicleFix) error
	PublishProgress(ctx context.Context, snap *domain.TrackingSnapshot) error
	PublishArrival(ctx context.Context, arrival *domain.StopArrival) error
}

// EventSubscriber subscribes to tracking events from a message broker.
type EventSubscriber interface {
	SubscribeFixes(ctx context.Context, handler func(ctx context.Context, fix *domain.VehicleFix) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// RoutingService is an external routing engine used for enrichment.
type RoutingService interface {
	// DistanceToStop returns the driving distance and duration from pos to stop.
	DistanceToStop(ctx context.Context, pos domain.Position, stop domain.Stop) (*domain.Enrichment, error)
	// RoutePolyline returns an encoded polyline driving through stops in order.
	RoutePolyline(ctx context.Context, stops []domain.Stop) (string, error)
}

// ArrivalNotifier fans a stop arrival out to subscribed guardians.
type ArrivalNotifier interface {
	NotifyArrival(ctx context.Context, arrival *domain.StopArrival) error
}

// NotificationService sends notifications (push, email, etc.).
type NotificationService interface {
	SendPush(ctx context.Context, topic, title, body string) error
}
