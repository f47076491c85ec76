package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/deal-portal/internal/api/http/handlers"
	"github.com/spec-kit/deal-portal/internal/auth"
	"github.com/spec-kit/deal-portal/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Deals          *handlers.DealsHandler
	AdminDeals     *handlers.AdminDealsHandler
	Notifications  *handlers.NotificationsHandler
	RateLimit      *handlers.RateLimitHandler
	AuthMiddleware *auth.AuthMiddleware
	// MetricsRegistry is served on /metrics when set.
	MetricsRegistry *prometheus.Registry
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.MetricsRegistry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.MetricsRegistry, promhttp.HandlerOpts{})))
	}

	if cfg.RateLimit != nil {
		app.Post("/auth/rate-check", cfg.RateLimit.Check)
	}

	authenticate := cfg.AuthMiddleware.Handle

	deals := app.Group("/deals", authenticate, auth.RequireAnyRole(), auth.RequireApproved())
	deals.Post("/", auth.RequireRole(domain.RoleBroker), cfg.Deals.CreateDeal)
	deals.Get("/", auth.RequireRole(domain.RoleBroker), cfg.Deals.ListDeals)
	deals.Get("/:id", cfg.Deals.GetDeal)
	deals.Get("/:id/history", cfg.Deals.History)
	deals.Get("/:id/messages", cfg.Deals.ListMessages)
	deals.Post("/:id/messages", cfg.Deals.PostMessage)

	admin := app.Group("/admin", authenticate, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/pipeline", cfg.AdminDeals.Pipeline)
	admin.Post("/deals/:id/status", cfg.AdminDeals.UpdateStatus)
	admin.Post("/deals/:id/document-requests", cfg.AdminDeals.RequestDocuments)
	admin.Post("/deals/:id/score", cfg.AdminDeals.ScoreDeal)
	admin.Get("/deals/:id/score", cfg.AdminDeals.GetScore)
	admin.Patch("/deals/:id/notes", cfg.AdminDeals.UpdateNotes)

	app.Post("/notifications", authenticate, auth.RequireAnyRole(), cfg.Notifications.Notify)
}
