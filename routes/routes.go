package routes

import (
	"net/http"
	"time"

	"github.com/duetcare/access-engine/app"
	"github.com/duetcare/access-engine/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all application routes and middleware.
// Every /api/v1 route resolves the subject; write routes additionally
// require one. Reads never reject anonymous callers up front, the
// engine collapses their results instead.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.ResolveSubject)

		// The caller's own data
		r.Route("/me", func(r chi.Router) {
			r.Get("/", handlers.GetOwnProfileHandler(deps))
			r.Get("/safety-signals", handlers.ListSafetySignalsHandler(deps))

			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireSubject)
				r.Put("/preferences", handlers.UpsertPreferenceHandler(deps))
				r.Put("/safety-profile", handlers.UpsertSafetyProfileHandler(deps))
				r.Post("/safety-signals", handlers.AppendSafetySignalHandler(deps))
				r.Post("/deactivate", handlers.DeactivateAccountHandler(deps))
			})
		})

		// Pairing management
		r.Route("/pairings", func(r chi.Router) {
			r.Get("/{id}/communications", handlers.ListCommunicationsHandler(deps))

			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireSubject)
				r.Post("/", handlers.CreatePairingHandler(deps))
				r.Post("/{id}/deactivate", handlers.DeactivatePairingHandler(deps))
			})
		})

		// Communications within the caller's pairing
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireSubject)
			r.Post("/communications", handlers.SendCommunicationHandler(deps))
		})

		// Assessments and their consent flags
		r.Route("/assessments", func(r chi.Router) {
			r.Get("/", handlers.ListAssessmentsHandler(deps))
			r.Get("/{id}", handlers.GetAssessmentHandler(deps))
			r.Get("/{id}/consent", handlers.GetConsentHandler(deps))

			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireSubject)
				r.Post("/", handlers.SubmitAssessmentHandler(deps))
				r.Put("/{id}/consent", handlers.SetConsentHandler(deps))
			})
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
