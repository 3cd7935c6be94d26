package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/bustrack/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // stop lists and paths are small; favour latency
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging, probes at debug)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 600 requests per minute per IP. Buses report every few
	// seconds, so fixes get a wider budget than reads.
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching. Registered before CachingMiddleware so it
	// runs after it on the way out and can skip no-store responses.
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1, 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Get("/routes", timeout.NewWithContext(ListRoutesHandler(deps), requestTimeout))
	v1.Get("/routes/:id", timeout.NewWithContext(GetRouteHandler(deps), requestTimeout))
	v1.Get("/routes/:id/stops", timeout.NewWithContext(RouteStopsHandler(deps), requestTimeout))
	v1.Get("/routes/:id/path", timeout.NewWithContext(RoutePathHandler(deps), requestTimeout))
	v1.Get("/routes/:id/vehicles", timeout.NewWithContext(GetRouteVehiclesHandler(deps), requestTimeout))

	// Live tracking
	v1.Post("/vehicles/:id/fixes", timeout.NewWithContext(SubmitFixHandler(deps), requestTimeout))
	v1.Get("/vehicles/:id/progress", timeout.NewWithContext(VehicleProgressHandler(deps), requestTimeout))
	v1.Put("/vehicles/:id/session", timeout.NewWithContext(StartSessionHandler(deps), requestTimeout))

	// Pure computation, no timeout
	v1.Post("/polyline/decode", DecodePolylineHandler())

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket relay of progress and arrivals
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
