package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

const readyTimeout = 3 * time.Second

// probe is one readiness check. A nil run means the dependency is not
// configured; required probes then fail readiness.
type probe struct {
	name     string
	required bool
	run      func(ctx context.Context) error
}

var errDisconnected = errors.New("disconnected")

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"uptime":   time.Since(startedAt).String(),
			"tracking": deps.Tracking != nil,
		})
	}
}

// ReadyHandler reports the state of the database, NATS and the cache.
// Only the database is required. NATS and the cache fail readiness when
// configured but unreachable.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	probes := readinessProbes(deps)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
		defer cancel()

		checks := make(map[string]string, len(probes))
		ready := true
		for _, p := range probes {
			switch {
			case p.run == nil:
				checks[p.name] = "not configured"
				ready = ready && !p.required
			default:
				if err := p.run(ctx); err != nil {
					checks[p.name] = "error: " + err.Error()
					ready = false
				} else {
					checks[p.name] = "ok"
				}
			}
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "checks": checks})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": checks})
	}
}

func readinessProbes(deps *Dependencies) []probe {
	probes := []probe{
		{name: "database", required: true},
		{name: "nats"},
		{name: "cache"},
	}
	if deps.DB != nil {
		probes[0].run = deps.DB.Ping
	}
	if deps.NATS != nil {
		probes[1].run = func(context.Context) error {
			if !deps.NATS.IsConnected() {
				return errDisconnected
			}
			return nil
		}
	}
	if deps.Cache != nil {
		probes[2].run = deps.Cache.Ping
	}
	return probes
}
