package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	if h.metrics != nil {
		r.Use(MetricsMiddleware(h.metrics))
	}
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Inline so rejected ids still carry the full route pattern.
		r.With(UserIDMiddleware).Get("/users/{userID}/curve", h.Curve)
		r.With(UserIDMiddleware).Get("/users/{userID}/dashboard", h.Dashboard)
	})

	if h.metrics != nil {
		r.Method("GET", "/metrics", h.metrics.Handler())
	}

	return r
}
