package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		// Clients
		r.Route("/clients", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListClients)
			r.Post("/broadcast", s.HandleBroadcastContent)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetClient)
				r.Put("/", s.HandleUpdateClient)
				r.Delete("/", s.HandleDeleteClient)
				r.Post("/push", s.HandlePushContent)
				r.Post("/command", s.HandleSendCommand)
			})
		})

		// Groups
		r.Route("/groups", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/{group}/push", s.HandlePushToGroup)
		})

		// Registration tokens
		r.Route("/tokens", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListTokens)
			r.Post("/", s.HandleCreateToken)
			r.Delete("/{id}", s.HandleDeleteToken)
		})

		// Layout schedules
		r.Route("/schedules", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListSchedules)
			r.Post("/", s.HandleCreateSchedule)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetSchedule)
				r.Put("/", s.HandleUpdateSchedule)
				r.Delete("/", s.HandleDeleteSchedule)
			})
		})

		// Event logs
		r.Route("/events", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListEvents)
		})
	})
}
