// Package httptransport assembles the HTTP surface: middleware stack, public
// routes, and the role-scoped route groups.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"truconn/internal/platform/middleware"
)

// RouteRegistrar mounts a handler's routes on a router group.
type RouteRegistrar func(chi.Router)

// Routes collects the per-domain registrars grouped by required role.
// Nil registrars are skipped so callers wire only what they run.
type Routes struct {
	// Public routes need no authentication.
	Public []RouteRegistrar

	// Citizen routes require an authenticated citizen principal.
	Citizen []RouteRegistrar

	// Organization routes require an authenticated organization principal.
	Organization []RouteRegistrar

	// Oversight routes are open to organization and staff principals.
	Oversight []RouteRegistrar
}

// Config carries what the router needs beyond the route registrars.
type Config struct {
	SigningKey string
	Health     http.Handler
	Logger     *slog.Logger
}

// NewRouter wires the middleware stack and mounts all route groups.
func NewRouter(cfg Config, routes Routes) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	r.Method(http.MethodGet, "/healthz", cfg.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, register := range routes.Public {
		register(r)
	}

	auth := middleware.RequireAuth(cfg.SigningKey, cfg.Logger)

	r.Group(func(g chi.Router) {
		g.Use(auth)
		g.Use(middleware.RequireRole(cfg.Logger, middleware.RoleCitizen))
		for _, register := range routes.Citizen {
			register(g)
		}
	})

	r.Group(func(g chi.Router) {
		g.Use(auth)
		g.Use(middleware.RequireRole(cfg.Logger, middleware.RoleOrganization))
		for _, register := range routes.Organization {
			register(g)
		}
	})

	r.Group(func(g chi.Router) {
		g.Use(auth)
		g.Use(middleware.RequireRole(cfg.Logger, middleware.RoleOrganization, middleware.RoleStaff))
		for _, register := range routes.Oversight {
			register(g)
		}
	})

	return r
}
