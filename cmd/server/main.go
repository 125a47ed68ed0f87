package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"

	"github.com/thrivewithai/thrive-backend/internal/billing"
	"github.com/thrivewithai/thrive-backend/internal/config"
	"github.com/thrivewithai/thrive-backend/internal/crm"
	"github.com/thrivewithai/thrive-backend/internal/database"
	"github.com/thrivewithai/thrive-backend/internal/entitlement"
	"github.com/thrivewithai/thrive-backend/internal/handlers"
	"github.com/thrivewithai/thrive-backend/internal/logging"
	"github.com/thrivewithai/thrive-backend/internal/metrics"
	"github.com/thrivewithai/thrive-backend/internal/middleware"
	"github.com/thrivewithai/thrive-backend/internal/oauth"
	"github.com/thrivewithai/thrive-backend/internal/routes"
	"github.com/thrivewithai/thrive-backend/internal/services"
	"github.com/thrivewithai/thrive-backend/internal/store"
	"github.com/thrivewithai/thrive-backend/internal/store/mongostore"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.LogLevel)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}
	if cfg.UsesMongo() && cfg.MongoURI == "" {
		slog.Error("MONGO_URI is required when DOCUMENT_STORE=mongo")
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB, !cfg.UsesMongo()); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB, 5*time.Second)
	logging.Install(cfg.LogLevel, pgLogHandler)
	logging.StartCleanup(ctx, database.DB, cfg.LogRetentionDays)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Users and feedback
	var (
		users    store.UserStore
		feedback store.FeedbackStore
		docsName = "postgres"
		pingDocs func(context.Context) error
		mongo    *mongostore.Store
	)
	if cfg.UsesMongo() {
		var err error
		mongo, err = mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			slog.Error("document store connection failed", "error", err)
			os.Exit(1)
		}
		users, feedback, docsName, pingDocs = mongo, mongo, "mongo", mongo.Ping
	} else {
		gormStore := store.NewGormStore(database.DB)
		users, feedback = gormStore, gormStore
	}

	// Redis backs OAuth state and the CRM contact cache when configured
	var (
		states       oauth.StateStore
		contactCache crm.ContactCache
		redisClient  *redis.Client
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		states = oauth.NewRedisStateStore(redisClient)
		contactCache = crm.NewRedisContactCache(redisClient, cfg.ContactTTL)
	} else {
		memStates := oauth.NewMemoryStateStore()
		memStates.StartSweeper(ctx)
		states = memStates
	}

	m := metrics.New()

	// Billing and the gate. The gate fails closed when billing is off.
	billingClient := billing.New(billing.RevenueCatConfig{
		APIKey:        cfg.RevenueCatAPIKey,
		APIURL:        cfg.RevenueCatAPIURL,
		EntitlementID: cfg.RevenueCatEntitlementID,
		Platform:      cfg.RevenueCatPlatform,
		Timeout:       cfg.BillingTimeout,
	})
	gate := entitlement.NewGate(billingClient.Configured())
	if !billingClient.Configured() {
		slog.Warn("billing provider not configured, premium content stays locked")
	}

	backend, err := crm.New(cfg, contactCache)
	if err != nil {
		slog.Error("crm backend misconfigured", "backend", cfg.CRMBackend, "error", err)
		os.Exit(1)
	}
	slog.Info("crm backend selected", "backend", backend.Name())

	// Services
	apple := oauth.NewAppleVerifier(splitCSV(cfg.AppleClientIDs))
	authService := services.NewAuthService(users, database.DB, cfg, apple, gate)
	subscriptionService := services.NewSubscriptionService(users, billingClient, m)
	emailService := services.NewEmailService(cfg.SMTP, cfg.FeedbackAdminEmail, cfg.SiteURL)
	if !emailService.IsConfigured() {
		slog.Warn("SMTP not configured, feedback emails are disabled")
	}
	feedbackService := services.NewFeedbackService(feedback, emailService, backend, services.NewModerationService(), m, cfg.FanOutTimeout)
	contentService := services.NewContentService(database.DB, gate, m)

	warmCtx, cancelWarm := context.WithTimeout(ctx, cfg.BillingTimeout)
	subscriptionService.WarmCatalog(warmCtx)
	cancelWarm()

	var providers []oauth.Provider
	if cfg.Google.ClientID != "" {
		providers = append(providers, oauth.NewGoogleProvider(cfg.Google))
	}
	if cfg.GitHub.ClientID != "" {
		providers = append(providers, oauth.NewGitHubProvider(cfg.GitHub))
	}

	// Handlers
	h := routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		OAuth:        handlers.NewOAuthHandler(authService, states, cfg.SiteURL, providers...),
		Subscription: handlers.NewSubscriptionHandler(subscriptionService),
		Webhook:      handlers.NewWebhookHandler(subscriptionService, cfg.RevenueCatWebhookAuth),
		Content:      handlers.NewContentHandler(contentService),
		Feedback:     handlers.NewFeedbackHandler(feedbackService),
		Admin:        handlers.NewAdminHandler(subscriptionService),
		Health:       handlers.NewHealthHandler(database.Ping, docsName, pingDocs, billingClient.Configured(), backend.Name()),
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestContext())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders())

	routes.Setup(app, cfg, users, h, m.Handler())

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "document_store", docsName)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(cfg.FanOutTimeout + 5*time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	stop()
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if mongo != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := mongo.Close(closeCtx); err != nil {
			slog.Error("document store close error", "error", err)
		}
		cancel()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.ErrorContext(c.UserContext(), "unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
