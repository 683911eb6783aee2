package routes

import (
	"log/slog"
	"net/http"

	"github.com/clinware/labguard/internal/auth"
	"github.com/clinware/labguard/internal/handlers"
	customMiddleware "github.com/clinware/labguard/internal/middleware"
	"github.com/clinware/labguard/internal/security"
	pkghttp "github.com/clinware/labguard/pkg/http"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	securityHandler *handlers.SecurityHandler,
	tokenManager *auth.TokenManager,
	sessions security.SessionStore,
	clock security.Clock,
	ipConfig *pkghttp.IPConfig,
	metricsHandler http.Handler,
	logger *slog.Logger,
) {
	loginRateLimit := customMiddleware.DefaultLoginRateLimit()

	// Public routes
	router.With(customMiddleware.RateLimitByIP(loginRateLimit, ipConfig)).Post("/auth/login", authHandler.Login)
	router.Method(http.MethodGet, "/metrics", metricsHandler)

	// Session-authenticated routes
	router.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(tokenManager, sessions, clock, logger))

		r.Post("/auth/logout", authHandler.Logout)

		r.Route("/security", func(r chi.Router) {
			r.Get("/sessions/suspicious", securityHandler.GetSuspiciousSessions)
			r.Get("/sessions/{userID}", securityHandler.GetActiveSessions)
			r.Post("/sessions/{id}/suspicious", securityHandler.MarkSuspicious)
			r.Get("/attempts", securityHandler.GetRecentAttempts)
			r.Get("/users/{username}/excessive-failures", securityHandler.GetExcessiveFailures)
		})
	})
}
