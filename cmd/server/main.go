// @title           UCLF Legal Aid Portal API
// @version         1.0
// @description     Member services for the fraternity: legal-aid intake and tracking, the staff case workflow, the member directory and an AI legal assistant with daily quotas per tier.
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/uclf/legal-aid-portal/internal/assistant"
	"github.com/uclf/legal-aid-portal/internal/auth"
	"github.com/uclf/legal-aid-portal/internal/cases"
	"github.com/uclf/legal-aid-portal/internal/config"
	"github.com/uclf/legal-aid-portal/internal/events"
	"github.com/uclf/legal-aid-portal/internal/llm"
	"github.com/uclf/legal-aid-portal/internal/members"
	"github.com/uclf/legal-aid-portal/internal/middleware"
	"github.com/uclf/legal-aid-portal/internal/storage"
	"github.com/uclf/legal-aid-portal/internal/store"
	"github.com/uclf/legal-aid-portal/internal/usage"
	"github.com/uclf/legal-aid-portal/pkg/database"
	"github.com/uclf/legal-aid-portal/pkg/logger"
	"github.com/uclf/legal-aid-portal/pkg/models"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	lg, err := newLogger(cfg)
	if err != nil {
		log.Fatal("logger init failed:", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DatabaseURL, cfg.DBDebug)
	if err != nil {
		lg.Fatal("database open failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		lg.Fatal("migration failed", zap.Error(err))
	}
	if cfg.SeedData {
		seed(ctx, db, lg)
	}

	records := store.NewGormStore(db)

	loc, err := usage.LoadLocation(cfg.UsageTimezone)
	if err != nil {
		lg.Warn("unknown usage timezone, counting days in UTC", zap.String("tz", cfg.UsageTimezone), zap.Error(err))
	}
	enforcer := usage.NewEnforcer(records, usage.SystemClock{}, loc)

	// Assistant
	provider, err := llm.NewProvider(ctx, llm.ProviderName(cfg.AIProvider), apiKeyFor(cfg))
	if err != nil {
		lg.Fatal("ai provider init failed", zap.String("provider", cfg.AIProvider), zap.Error(err))
	}
	if _, ok := provider.(llm.Unavailable); ok {
		lg.Warn("no api key for ai provider, the assistant will answer with the connection error text",
			zap.String("provider", cfg.AIProvider))
	}
	gateway := llm.NewGateway(provider, cfg.AIModel, cfg.AITimeout, lg)
	manager := assistant.NewManager(records, enforcer, gateway, usage.SystemClock{}, lg)

	// Case documents
	var objects storage.Objects = storage.NewMemory()
	if cfg.SupabaseURL != "" {
		objects = storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
	} else {
		lg.Warn("SUPABASE_URL not set, case documents are kept in memory")
	}

	// Case events
	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		np, err := events.ConnectNATS(ctx, events.NATSConfig{
			URL:           cfg.NATSURL,
			Token:         cfg.NATSToken,
			SubjectPrefix: cfg.NATSSubjectPrefix,
			Stream:        cfg.NATSStream,
		}, lg)
		if err != nil {
			lg.Warn("nats unavailable, case events are dropped", zap.Error(err))
		} else {
			publisher = np
		}
	}
	defer publisher.Close()

	caseSvc := cases.NewService(db, cases.Options{
		RefPrefix: cfg.CaseRefPrefix,
		Location:  loc,
		Events:    publisher,
		Objects:   objects,
		Log:       lg,
	})
	memberSvc := members.NewService(db, records, lg)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)

	app := fiber.New(fiber.Config{
		AppName:      "uclf-legal-aid-portal",
		ErrorHandler: auth.ErrorHandler,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		BodyLimit:    16 * 1024 * 1024,
	})
	app.Use(requestid.New(requestid.Config{ContextKey: middleware.RequestIDKey}))
	app.Use(middleware.RequestLogger(lg))
	app.Use(recover.New())
	app.Use(middleware.CORS(cfg.AllowedOrigins()))
	app.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	requireAuth := auth.RequireSession(tokens, records)
	staff := auth.RequireRole(models.RoleFullMember, models.RoleAdmin)
	admin := auth.RequireRole(models.RoleAdmin)

	// Auth
	authH := auth.NewHandler(records, tokens, lg)
	api.Post("/login", auth.Identify(tokens), authH.Login)
	api.Post("/logout", requireAuth, authH.Logout)
	api.Get("/me", requireAuth, authH.Me)

	// Cases: public intake and tracking
	caseH := cases.NewHandler(caseSvc, lg)
	api.Post("/cases", auth.OptionalAuth(tokens), caseH.Intake)
	api.Get("/cases/track/:ref", caseH.Track)
	api.Post("/cases/track/:ref/files", caseH.UploadDocuments)
	// Staff
	api.Get("/cases", requireAuth, staff, caseH.List)
	api.Get("/cases/:id", requireAuth, staff, caseH.Get)
	api.Get("/cases/:id/history", requireAuth, staff, caseH.History)
	api.Patch("/cases/:id/status", requireAuth, staff, caseH.Transition)
	api.Get("/files/:fileID/signed-url", requireAuth, staff, caseH.SignedDownloadURL)
	// Admin
	api.Patch("/cases/:id", requireAuth, admin, caseH.Update)
	api.Post("/cases/:id/archive", requireAuth, admin, caseH.Archive)

	// Assistant: every tier, Guest included
	asstH := assistant.NewHandler(manager, lg)
	asst := api.Group("/assistant", requireAuth)
	asst.Get("/sessions", asstH.ListSessions)
	asst.Post("/sessions", asstH.CreateSession)
	asst.Delete("/sessions/:id", asstH.DeleteSession)
	asst.Post("/sessions/:id/activate", asstH.ActivateSession)
	asst.Post("/messages", asstH.SendMessage)
	asst.Post("/attachments", asstH.PrecheckAttachment)
	asst.Get("/usage", asstH.Usage)

	// Members
	memberH := members.NewHandler(memberSvc, records, lg)
	api.Get("/members", auth.OptionalAuth(tokens), memberH.Directory)
	api.Get("/me/privacy", requireAuth, memberH.GetPrivacy)
	api.Put("/me/privacy", requireAuth, memberH.PutPrivacy)
	api.Get("/admin/members", requireAuth, admin, memberH.List)
	api.Post("/admin/members", requireAuth, admin, memberH.Register)
	api.Patch("/admin/members/:id/status", requireAuth, admin, memberH.SetStatus)

	go func() {
		<-ctx.Done()
		lg.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			lg.Error("shutdown failed", zap.Error(err))
		}
	}()

	lg.Info("server running", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
	if err := app.Listen(":" + cfg.Port); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	if cfg.IsDev() {
		return logger.NewDevelopment()
	}
	return logger.New(cfg.LogLevel)
}

func apiKeyFor(cfg *config.Config) string {
	switch llm.ProviderName(cfg.AIProvider) {
	case llm.ProviderOpenAI:
		return cfg.OpenAIAPIKey
	case llm.ProviderAnthropic:
		return cfg.AnthropicAPIKey
	}
	return cfg.GeminiAPIKey
}

func seed(ctx context.Context, db *gorm.DB, lg *logger.Logger) {
	n, err := cases.Seed(ctx, db)
	if err != nil {
		lg.Error("seed cases failed", zap.Error(err))
	} else if n > 0 {
		lg.Info("seeded cases", zap.Int64("rows", n))
	}
	n, err = members.Seed(ctx, db)
	if err != nil {
		lg.Error("seed members failed", zap.Error(err))
	} else if n > 0 {
		lg.Info("seeded members", zap.Int64("rows", n))
	}
}
