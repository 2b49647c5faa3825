package routes

import (
	"log/slog"
	"time"

	"github.com/BradenHooton/molar/internal/auth"
	"github.com/BradenHooton/molar/internal/handlers"
	"github.com/BradenHooton/molar/internal/middleware"
	pkghttp "github.com/BradenHooton/molar/pkg/http"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Dependencies bundles everything the route table needs
type Dependencies struct {
	AuthHandler        *handlers.AuthHandler
	ClientHandler      *handlers.ClientHandler
	PreferencesHandler *handlers.PreferencesHandler
	TokenManager       *auth.TokenManager
	IPConfig           *pkghttp.IPConfig
	AllowedOrigins     []string
	RequestTimeout     time.Duration
	Logger             *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	loginLimit := middleware.DefaultLoginRateLimit()
	mutationLimit := middleware.DefaultMutationRateLimit()

	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Long-lived stream; excluded from the request timeout
	router.Get("/auth/lockout/countdown", deps.AuthHandler.LockoutCountdown)

	router.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(timeout))

		// Public routes - no session required
		r.With(middleware.RateLimitByIP(loginLimit, deps.IPConfig)).Post("/auth/login", deps.AuthHandler.Login)
		r.Get("/auth/lockout", deps.AuthHandler.LockoutStatus)
		r.Post("/auth/logout", deps.AuthHandler.Logout)
		r.Get("/preferences/language", deps.PreferencesHandler.GetLanguage)
		r.Put("/preferences/language", deps.PreferencesHandler.SetLanguage)

		// Protected routes - operator session required
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(deps.TokenManager))
			r.Use(middleware.CSRFProtection(deps.AllowedOrigins, deps.Logger))

			r.Get("/clients", deps.ClientHandler.ListClients)
			r.Get("/clients/{id}", deps.ClientHandler.GetClient)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByOperator(mutationLimit, deps.IPConfig))
				r.Post("/clients", deps.ClientHandler.CreateClient)
				r.Post("/clients/bulk-status", deps.ClientHandler.BulkUpdateStatus)
				r.Post("/clients/bulk-delete", deps.ClientHandler.BulkDelete)
				r.Put("/clients/{id}/status", deps.ClientHandler.UpdateStatus)
				r.Post("/clients/{id}/treatments", deps.ClientHandler.AddTreatment)
				r.Post("/clients/{id}/attachments", deps.ClientHandler.UploadAttachment)
			})
		})
	})
}
