package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/channel-token-service/app"
	appmiddleware "github.com/upb/channel-token-service/middleware"
	"github.com/upb/channel-token-service/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(appmiddleware.PropagateRequestID)
	r.Use(middleware.RealIP)
	r.Use(appmiddleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(deps.Config.Server.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	r.Group(func(r chi.Router) {
		r.Use(deps.AuthMiddleware.OptionalAuth)

		r.Post("/api/v1/tokens", deps.TokenHandler.HandleGenerate)
		r.Post("/callable/generateToken", deps.TokenHandler.HandleCallable)
	})

	// Operator view of the audit log
	if deps.IssuanceHandler != nil {
		r.With(deps.AuthMiddleware.RequireAuth).Get("/api/v1/issuances", deps.IssuanceHandler.HandleListRecent)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
