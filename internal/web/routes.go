package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-login/internal/web/handlers"
	"github.com/kozaktomas/face-login/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	face := s.faceHandler

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/face/login", face.Login)

		// Enrollment of the caller's own face
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(s.tokens, s.catalog))

			r.Get("/face/descriptor", face.Status)
			r.Put("/face/descriptor", face.Enroll)
			r.Delete("/face/descriptor", face.Unenroll)
		})

		// Administration
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser(s.tokens, s.catalog))
			r.Use(middleware.RequireAdmin(s.catalog))

			r.Get("/descriptors", face.List)
			r.Delete("/descriptors/{userID}", face.DeleteUser)
			r.Get("/descriptors/{userID}/collisions", face.Collisions)
		})
	})
}
