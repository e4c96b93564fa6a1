package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Unauthenticated
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket authenticates with a single-use ticket in the query.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes act on the session named by the token.
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/logout", s.handleLogout)
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/home", func(r chi.Router) {
				r.Get("/", s.handleGetHome)
				r.Post("/tick", s.handleTick)
				r.Post("/lights/{room}/toggle", s.handleToggleLight)
				r.Put("/thermostat", s.handleSetThermostat)
				r.Put("/fan", s.handleSetFan)
				r.Post("/cameras/{id}/toggle", s.handleToggleCamera)
				r.Put("/security", s.handleSetSecurity)
				r.Put("/doors/{id}", s.handleSetDoor)
				r.Post("/irrigation/{zone}/toggle", s.handleToggleIrrigation)
				r.Put("/irrigation/{zone}/schedule", s.handleUpdateSchedule)
				r.Post("/wifi/connect", s.handleConnectWifi)
				r.Post("/wifi/refresh", s.handleRefreshWifi)
				r.Delete("/alerts", s.handleClearAlerts)
				r.Get("/activity", s.handleGetActivity)
				r.Get("/journal", s.handleGetJournal)
				r.Get("/journal/alerts", s.handleGetAlertJournal)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"sessions": s.sessions.Count(),
	})
}
