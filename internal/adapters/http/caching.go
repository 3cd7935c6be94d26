package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != fiber.MethodGet {
			return err
		}
		// Don't override if already set
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		// Default cache times by endpoint pattern
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // very short for system checks

		case path == "/metrics":
			ttl = "no-cache" // metrics are real-time

		case strings.HasPrefix(path, "/v1/vehicles/"):
			ttl = "no-store" // live progress

		case strings.HasSuffix(path, "/vehicles"):
			ttl = "public, max-age=5" // latest positions change every few seconds

		case strings.HasSuffix(path, "/stops") || strings.HasSuffix(path, "/path"):
			ttl = "public, max-age=600" // 10 min, stops only change on import

		case strings.HasPrefix(path, "/v1/routes"):
			ttl = "public, max-age=300" // 5 min for route metadata

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60" // 1 min default for API endpoints
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
