package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vectorgate/vectorgate/app"
	"github.com/vectorgate/vectorgate/models"
	"github.com/vectorgate/vectorgate/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// API v1 routes, all tenant-scoped
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireTenant)

		// Query endpoints
		r.Route("/query", func(r chi.Router) {
			r.Use(deps.RateLimitMiddleware.Limit(models.OperationQuery))
			r.Post("/", deps.QueryHandler.HandleQuery)
			r.Get("/retrieve", deps.QueryHandler.HandleRetrieve)
		})

		// Document ingestion and deletion
		r.Route("/documents", func(r chi.Router) {
			r.Use(deps.RateLimitMiddleware.Limit(models.OperationIngest))
			r.Post("/", deps.DocumentHandler.HandleIngest)
			r.Post("/batch", deps.DocumentHandler.HandleBatchIngest)
			r.Delete("/{id}", deps.DocumentHandler.HandleDelete)
		})

		// Job status and cancellation
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", deps.JobHandler.HandleList)
			r.Get("/{id}", deps.JobHandler.HandleGet)
			r.Delete("/{id}", deps.JobHandler.HandleCancel)
		})

		// Vector store descriptor
		r.Get("/index", deps.HealthHandler.HandleIndex)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "Route not found")
	})

	// 405 handler
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSON(w, http.StatusMethodNotAllowed, utils.ErrorResponse{
			Error: "Method not allowed",
		})
	})

	return r
}
