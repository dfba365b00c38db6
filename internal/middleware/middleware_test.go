package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/uclf/legal-aid-portal/internal/auth"
	"github.com/uclf/legal-aid-portal/pkg/logger"
	"github.com/uclf/legal-aid-portal/pkg/models"
)

func observed() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{Logger: zap.New(core)}, logs
}

func TestRequestLogger_LogsRenderedStatus(t *testing.T) {
	lg, logs := observed()
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(RequestLogger(lg))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/missing", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusNotFound, "case not found") })

	resp, _ := app.Test(httptest.NewRequest("GET", "/missing", nil), -1)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
	_, _ = app.Test(httptest.NewRequest("GET", "/ok", nil), -1)

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 2 {
		t.Fatalf("want 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel || entries[0].ContextMap()["status"] != int64(404) {
		t.Fatalf("404 entry: level=%s fields=%v", entries[0].Level, entries[0].ContextMap())
	}
	if entries[1].Level != zapcore.InfoLevel || entries[1].ContextMap()["path"] != "/ok" {
		t.Fatalf("200 entry: level=%s fields=%v", entries[1].Level, entries[1].ContextMap())
	}
}

func TestRateLimit(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(RateLimit(2, time.Minute))
	app.Get("/api/x", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 2; i++ {
		resp, _ := app.Test(httptest.NewRequest("GET", "/api/x", nil), -1)
		if resp.StatusCode != 200 {
			t.Fatalf("request %d: status %d", i, resp.StatusCode)
		}
	}
	resp, _ := app.Test(httptest.NewRequest("GET", "/api/x", nil), -1)
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("want 429, got %d", resp.StatusCode)
	}
	resp, _ = app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("health must not be limited, got %d", resp.StatusCode)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimit(0, time.Minute))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	for i := 0; i < 5; i++ {
		resp, _ := app.Test(httptest.NewRequest("GET", "/", nil), -1)
		if resp.StatusCode != 200 {
			t.Fatalf("status %d", resp.StatusCode)
		}
	}
}

func TestCORS_ConfiguredOrigin(t *testing.T) {
	app := fiber.New()
	app.Use(CORS([]string{"https://uclf.org.ug"}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://uclf.org.ug")
	resp, _ := app.Test(req, -1)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://uclf.org.ug" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestRequestLog_CarriesCaller(t *testing.T) {
	lg, logs := observed()
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(RequestIDKey, "req-1")
		c.Locals("profileID", "p1")
		c.Locals("tier", models.RoleAdmin)
		return c.Next()
	})
	app.Get("/", func(c *fiber.Ctx) error {
		RequestLog(c, lg).Info("handled")
		return nil
	})
	_, _ = app.Test(httptest.NewRequest("GET", "/", nil), -1)

	entries := logs.FilterMessage("handled").All()
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["profile_id"] != "p1" || fields["tier"] != string(models.RoleAdmin) {
		t.Fatalf("fields = %v", fields)
	}
}
