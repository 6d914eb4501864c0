package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"marketplace-auth/internal/config"
	"marketplace-auth/internal/handler"
	"marketplace-auth/internal/middleware"
	"marketplace-auth/internal/model"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Audit   *handler.AuditHandler
	Health  *handler.HealthHandler
	Docs    *handler.DocsHandler
	Metrics http.Handler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	clientIPs := middleware.NewClientIPResolver(cfg.TrustedProxies)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, clientIPs)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}
	if h.Docs != nil {
		r.Get("/openapi.yaml", h.Docs.OpenAPI)
		r.Get("/swagger", h.Docs.SwaggerUI)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Auth.Login)
			auth.Post("/register", h.Auth.Register)
			auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
			auth.With(authMiddleware.RequireAuth).Post("/change-password", h.Auth.ChangePassword)
			auth.With(authMiddleware.RequireAuth).Post("/logout", h.Auth.Logout)
		})

		api.With(authMiddleware.RequireAuth).Get("/roles", h.Auth.Roles)

		api.Route("/admin/users", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)

			admin.With(authMiddleware.RequireRoles(model.RoleAdmin, model.RoleModerator)).Get("/", h.User.List)
			admin.With(authMiddleware.RequireRoles(model.RoleAdmin)).Put("/{id}/role", h.User.UpdateRole)
			admin.With(authMiddleware.RequireRoles(model.RoleAdmin)).Put("/{id}/status", h.User.UpdateStatus)
			admin.With(authMiddleware.RequireRoles(model.RoleAdmin)).Delete("/{id}", h.User.Delete)
		})

		api.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles(model.RoleAdmin)).Get("/admin/audit", h.Audit.List)
	})

	return r
}
