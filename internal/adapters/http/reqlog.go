package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
)

// RequestIDLogMiddleware stores a logger tagged with the request ID in the
// user context. Handlers and use cases read it back with LoggerFromCtx.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		if rid == "" {
			return c.Next()
		}

		ctx := context.WithValue(c.UserContext(), requestIDKey, rid)
		ctx = context.WithValue(ctx, loggerKey, slog.Default().With("request_id", rid))
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// withLogAttrs returns a copy of ctx whose logger carries the extra attributes.
func withLogAttrs(ctx context.Context, args ...any) context.Context {
	return context.WithValue(ctx, loggerKey, LoggerFromCtx(ctx).With(args...))
}

// tagVehicle adds the vehicle id from the route params to the request logger.
func tagVehicle(c *fiber.Ctx) {
	if id := c.Params("id"); id != "" {
		c.SetUserContext(withLogAttrs(c.UserContext(), "vehicle_id", id))
	}
}

// LoggerFromCtx extracts the per-request slog.Logger from a context.
// Falls back to the default logger if none is set.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// RequestIDFromCtx returns the request ID stored by RequestIDLogMiddleware.
func RequestIDFromCtx(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey).(string)
	return rid
}
