package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/chat"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	AdminTickets   *handlers.AdminTicketsHandler
	Companies      *handlers.CompaniesHandler
	Clients        *handlers.ClientsHandler
	Analytics      *handlers.AnalyticsHandler
	WebSocket      *handlers.WebSocketHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimits     repository.RateLimitRepository
	LoginPerMinute int
	Metrics        *observability.Metrics
	UploadRoot     string
	Logger         *zap.Logger
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{})))
	}
	if cfg.UploadRoot != "" {
		app.Static("/"+chat.PublicSegment, cfg.UploadRoot, fiber.Static{ByteRange: true})
	}
	if cfg.WebSocket != nil {
		app.Get("/ws", cfg.WebSocket.Upgrade, cfg.WebSocket.Handler())
	}

	authGroup := app.Group("/auth", authRateLimit(cfg.RateLimits, cfg.LoginPerMinute, cfg.Logger))
	authGroup.Post("/clients/register", cfg.Auth.RegisterClient)
	authGroup.Post("/clients/login", cfg.Auth.LoginClient)
	authGroup.Post("/admins/login", cfg.Auth.LoginSuperAdmin)
	authGroup.Post("/password/forgot", cfg.Auth.ForgotPassword)
	authGroup.Post("/password/reset", cfg.Auth.ResetPassword)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireClient())
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/messages", cfg.Tickets.GetTranscript)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireSuperAdmin())
	admin.Get("/tickets", cfg.AdminTickets.ListTickets)
	admin.Get("/tickets/:id", cfg.AdminTickets.GetTicket)
	admin.Get("/tickets/:id/messages", cfg.AdminTickets.GetTranscript)
	admin.Patch("/tickets/:id/status", cfg.AdminTickets.UpdateStatus)

	admin.Post("/companies", cfg.Companies.Create)
	admin.Get("/companies", cfg.Companies.List)
	admin.Get("/companies/:id", cfg.Companies.Get)
	admin.Put("/companies/:id", cfg.Companies.Update)

	admin.Get("/clients", cfg.Clients.List)
	admin.Post("/clients/:id/approve", cfg.Clients.Approve)
	admin.Post("/clients/:id/reject", cfg.Clients.Reject)

	admin.Get("/analytics", cfg.Analytics.Overview)
}
