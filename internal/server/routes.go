package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/notelens/notelens/internal/core/router"
	"github.com/notelens/notelens/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes(dispatch *router.Router) {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)

	s.router.Get("/version", handlers.VersionHandler)

	messages := &handlers.Messages{Dispatch: dispatch}
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/message", messages.Message)
		r.Get("/tasks/{taskID}/notes", messages.TaskNotes)
	})
}
