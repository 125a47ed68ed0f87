package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/thrivewithai/thrive-backend/internal/config"
	"github.com/thrivewithai/thrive-backend/internal/handlers"
	"github.com/thrivewithai/thrive-backend/internal/middleware"
	"github.com/thrivewithai/thrive-backend/internal/store"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	OAuth        *handlers.OAuthHandler
	Subscription *handlers.SubscriptionHandler
	Webhook      *handlers.WebhookHandler
	Content      *handlers.ContentHandler
	Feedback     *handlers.FeedbackHandler
	Admin        *handlers.AdminHandler
	Health       *handlers.HealthHandler
}

func Setup(app *fiber.App, cfg *config.Config, users store.UserStore, h Handlers, metricsHandler http.Handler) {
	// Scrapers authenticate with the X-Admin-Token header.
	app.Get("/metrics",
		middleware.OptionalSession(cfg, users),
		middleware.AdminRequired(cfg),
		adaptor.HTTPHandler(metricsHandler))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/refresh", h.Auth.Refresh)
	auth.Post("/apple", h.Auth.AppleSignIn)
	auth.Post("/oauth/exchange", h.OAuth.Exchange)
	auth.Get("/oauth/:provider", h.OAuth.ConsentURL)
	auth.Get("/oauth/:provider/callback", h.OAuth.Callback)

	// JWT-protected routes are registered one by one so the middleware never
	// runs for public routes sharing a prefix.
	protected := []fiber.Handler{middleware.JWTProtected(cfg), middleware.LoadSession(users)}
	withSession := func(handler fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, protected...), handler)
	}

	api.Post("/auth/logout", withSession(h.Auth.Logout)...)
	api.Get("/me", withSession(h.Auth.Me)...)

	api.Get("/subscription/offerings", withSession(h.Subscription.Offerings)...)
	api.Post("/subscription/purchase", withSession(h.Subscription.Purchase)...)
	api.Post("/subscription/restore", withSession(h.Subscription.Restore)...)
	api.Post("/subscription/refresh", withSession(h.Subscription.Refresh)...)

	// Content is public; a valid token only changes what the gate lets through.
	content := api.Group("/content", middleware.OptionalSession(cfg, users))
	content.Get("/:kind", h.Content.List)
	content.Get("/:kind/:slug", h.Content.Get)

	api.Get("/feedback/public", h.Feedback.Public)
	api.Get("/feedback/mine", withSession(h.Feedback.Mine)...)
	api.Post("/feedback", withSession(h.Feedback.Submit)...)

	// Webhooks: shared-secret Authorization header, no JWT
	api.Post("/webhooks/revenuecat", h.Webhook.HandleRevenueCat)

	admin := api.Group("/admin", middleware.OptionalSession(cfg, users), middleware.AdminRequired(cfg))
	admin.Get("/feedback", h.Feedback.List)
	admin.Get("/feedback/:id", h.Feedback.Get)
	admin.Put("/feedback/:id", h.Feedback.Respond)
	admin.Put("/users/:id/subscription", h.Admin.SetSubscription)
	admin.Put("/content/:kind/:slug", h.Content.Upsert)
}
