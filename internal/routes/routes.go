package routes

import (
	"log/slog"
	"net/http"

	"github.com/BradenHooton/accounts/internal/handlers"
	"github.com/BradenHooton/accounts/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// SessionGuard is the middleware factory protecting signed-in routes.
type SessionGuard interface {
	RequireSession(logger *slog.Logger) func(http.Handler) http.Handler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	accountHandler *handlers.AccountHandler,
	profileHandler *handlers.ProfileHandler,
	healthHandler *handlers.HealthHandler,
	sessions SessionGuard,
	rateLimitConfig middleware.RateLimitConfig,
	logger *slog.Logger,
) {
	router.Get("/health", healthHandler.Check)

	router.Route("/accounts", func(r chi.Router) {
		// Credential and token endpoints share one per-IP budget
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(rateLimitConfig))

			r.Post("/register", accountHandler.Register)
			r.Post("/login", accountHandler.Login)
			r.Post("/resend-activation", accountHandler.ResendActivation)
			r.Post("/password-reset", accountHandler.RequestPasswordReset)
			r.Post("/reset/{token}", accountHandler.ConsumePasswordReset)
			r.Get("/activate/{uidb64}/{token}", accountHandler.Activate)
		})

		r.Post("/logout", accountHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(sessions.RequireSession(logger))

			r.Get("/me", accountHandler.Me)
			r.Put("/me/profile", accountHandler.UpdateProfile)
		})
	})

	router.Get("/profiles/{username}", profileHandler.GetProfile)
}
