package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/propchain/upkeep/app"
	"github.com/propchain/upkeep/handlers"
	"github.com/propchain/upkeep/internal/observability"
	"github.com/propchain/upkeep/services/permission"
)

const requestTimeout = 60 * time.Second

// SetupRoutes configures the main API
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := newRouter(deps)
	cfg := deps.Config

	health := handlers.NewHealthHandler(handlers.HealthOptions{
		Version:     "1.0.0",
		Environment: cfg.Environment,
		Checks: []handlers.HealthCheck{
			{Name: "database", Check: deps.DB.HealthCheck},
			{Name: "redis", Check: deps.Store.Ping},
		},
	}, deps.Logger)
	mountHealth(r, health)

	authHandler := handlers.NewAuthHandler(deps.AuthService, nil, cfg.Environment, deps.Logger)
	resources := handlers.NewResourceHandler(deps.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		mountAuth(r, deps, authHandler, false)

		// Business routes: authenticate, count, scope to an organization, then check the permission
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.RateLimit.PerUser(cfg.RateLimit.UserRequests, cfg.RateLimit.UserWindow))

			// inline middleware runs after routing so {orgId} is visible to the resolver
			gate := func(perm string) chi.Router {
				return r.With(deps.OrgResolver.Middleware, deps.AuthMiddleware.RequirePermission(perm))
			}

			gate(permission.OrganizationView).Get("/organizations", resources.ListOrganizations)
			gate(permission.OrganizationView).Get("/organizations/{orgId}", resources.GetOrganization)
			gate(permission.PropertyView).Get("/properties", resources.List("properties"))
			gate(permission.WorkLogView).Get("/work-logs", resources.List("workLogs"))
			gate(permission.DocumentView).Get("/documents", resources.List("documents"))
			gate(permission.InvoiceView).Get("/invoices", resources.List("invoices"))
			gate(permission.ReportView).Get("/reports/work-summary", resources.WorkSummary)
		})

		// Machine access with organization API keys
		r.Route("/integrations", func(r chi.Router) {
			r.Use(deps.APIKeyAuth.Require)
			r.Use(deps.OrgResolver.Middleware)
			r.With(deps.AuthMiddleware.RequirePermission(permission.ReportView)).
				Get("/reports/work-summary", resources.WorkSummary)
		})
	})

	return r
}

// SetupMockRoutes configures the standalone mock auth service
func SetupMockRoutes(deps *app.Dependencies) http.Handler {
	r := newRouter(deps)

	checks := []handlers.HealthCheck{}
	if deps.Config.Redis.Addr != "" {
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: deps.Store.Ping})
	}
	health := handlers.NewHealthHandler(handlers.HealthOptions{
		Service:        "auth-mock",
		Version:        "1.0.0",
		Environment:    deps.Config.Environment,
		Checks:         checks,
		ActiveSessions: deps.ActiveSessions,
	}, deps.Logger)
	mountHealth(r, health)

	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.DemoUsers, deps.Config.Environment, deps.Logger)
	r.Route("/api/v1", func(r chi.Router) {
		mountAuth(r, deps, authHandler, true)
	})

	return r
}

func newRouter(deps *app.Dependencies) chi.Router {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	if deps.Config.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(observability.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)
	return r
}

func mountHealth(r chi.Router, h *handlers.HealthHandler) {
	r.Get("/health", h.HandleHealth)
	r.Get("/health/ready", h.HandleReadiness)
	r.Get("/health/live", h.HandleLiveness)
}

// mountAuth adds the auth endpoints; the mock service also exposes its
// info and session listing
func mountAuth(r chi.Router, deps *app.Dependencies, h *handlers.AuthHandler, mock bool) {
	limits := deps.Config.RateLimit
	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimit.PerClientIP(limits.LoginRequests, limits.LoginWindow)).Post("/login", h.HandleLogin)
		r.Post("/refresh", h.HandleRefresh)
		r.With(deps.AuthMiddleware.OptionalAuth).Post("/logout", h.HandleLogout)
		r.Get("/profile", h.HandleProfile)
		if mock {
			r.Get("/info", h.HandleInfo)
			r.Get("/sessions", h.HandleSessions)
		}
	})
}
