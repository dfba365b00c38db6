// Package middleware holds the fiber middleware shared by every route.
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"

	"github.com/uclf/legal-aid-portal/pkg/logger"
	"github.com/uclf/legal-aid-portal/pkg/metrics"
	"github.com/uclf/legal-aid-portal/pkg/models"
)

// RequestIDKey is where the requestid middleware stores the id.
const RequestIDKey = "requestid"

// RequestLogger logs every request and records request metrics.
// Errors are rendered here so the logged status is the one the client sees.
func RequestLogger(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		duration := time.Since(start)
		status := c.Response().StatusCode()
		route := c.Route().Path
		if route == "" || route == "/" {
			route = c.Path()
		}

		reqID, _ := c.Locals(RequestIDKey).(string)
		profileID, _ := c.Locals("profileID").(string)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Int("bytes", len(c.Response().Body())),
			zap.Duration("duration", duration),
			zap.String("request_id", reqID),
			zap.String("profile_id", profileID),
			zap.String("remote_addr", c.IP()),
		}
		switch {
		case status >= 500:
			log.Error("request completed", fields...)
		case status >= 400:
			log.Warn("request completed", fields...)
		default:
			log.Info("request completed", fields...)
		}

		metrics.RecordRequest(c.Method(), route, strconv.Itoa(status), duration.Seconds())
		return nil
	}
}

// CORS allows the configured origins. "*" or an empty list allows any origin.
func CORS(origins []string) fiber.Handler {
	cfg := cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}
	if len(origins) > 0 && !(len(origins) == 1 && origins[0] == "*") {
		cfg.AllowOrigins = strings.Join(origins, ",")
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// RateLimit bounds requests per client IP. max <= 0 disables it.
func RateLimit(max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded, try again later")
		},
	})
}

// RequestLog returns base scoped to the current request and caller.
func RequestLog(c *fiber.Ctx, base *logger.Logger) *logger.Logger {
	reqID, _ := c.Locals(RequestIDKey).(string)
	profileID, _ := c.Locals("profileID").(string)
	tier, _ := c.Locals("tier").(models.Role)
	return base.WithRequest(reqID, profileID, string(tier))
}
