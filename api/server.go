/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/enrollments", func(r chi.Router) {
			r.Post("/", h.CreateEnrollment)
			r.Get("/{id}", h.GetEnrollment)
			r.Post("/{id}/approve", h.ApproveEnrollment)
			r.Post("/{id}/reject", h.RejectEnrollment)
			r.Post("/{id}/lessons/{lesson}/complete", h.CompleteLesson)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/{id}/enrollments", h.ListUserEnrollments)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/callback", h.PaymentCallback)
		})

		r.Route("/courses", func(r chi.Router) {
			r.Get("/", h.ListCourses)
			r.Get("/{id}/batches", h.ListBatches)
		})

		// Catalog administration. Expected to be gated upstream.
		r.Route("/admin", func(r chi.Router) {
			r.Post("/courses", h.CreateCourse)
			r.Post("/batches", h.CreateBatch)
			r.Post("/users", h.CreateUser)
		})
	})

	return r
}
