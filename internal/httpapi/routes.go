package httpapi

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all httpapi routes: one resource per engine
// collaborator (sessions, messages, commands, shell, permissions), plus a
// single merged SSE event stream. Deliberately minimal — no
// multi-resource REST surface, no authentication, loopback-only by
// convention.
func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)
		r.Get("/sync", s.sessionSync)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)

			r.Get("/message", s.getMessages)
			r.Post("/message", s.sendMessage)

			r.Post("/abort", s.abortSession)
			r.Post("/command", s.executeCommand)
			r.Post("/shell", s.runShell)
			r.Post("/permissions/{permissionID}", s.respondPermission)
		})
	})

	r.Get("/event", s.sessionEvents)
}
