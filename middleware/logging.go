// Package middleware provides request logging, Prometheus metrics, and
// rate limiting for the API.
package middleware

import (
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger, JSON on stdout.
var Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

// StructuredLogger emits one JSON line per handled request. The resolved
// account ID is attached when an auth gate stored one, so anonymous and
// authenticated traffic can be separated in the logs without ever
// logging tokens or credentials.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []any{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.Int("bytes", len(c.Response().Body())),
		}

		if rid := c.Locals("requestid"); rid != nil {
			attrs = append(attrs, slog.Any("request_id", rid))
		}
		if uid := c.Locals("userID"); uid != nil {
			attrs = append(attrs, slog.Any("user_id", uid))
		}

		switch {
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			Logger.Error("request failed", attrs...)
		case status >= fiber.StatusInternalServerError:
			Logger.Error("request errored", attrs...)
		case status == fiber.StatusTooManyRequests:
			Logger.Warn("request throttled", attrs...)
		default:
			Logger.Info("request completed", attrs...)
		}

		return err
	}
}
