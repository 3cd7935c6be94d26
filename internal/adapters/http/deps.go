package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/bustrack/internal/adapters/postgres"
	"github.com/samirrijal/bustrack/internal/adapters/valkey"
	"github.com/samirrijal/bustrack/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Routes   *usecases.RouteService
	Tracking *usecases.TrackingService
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
}
