package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all time-tracking routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.HandleStartSession)
		r.Get("/{id}", h.HandleGetSession)
		r.Post("/{id}/stop", h.HandleStopSession)
	})

	r.Route("/technicians/{id}", func(r chi.Router) {
		r.Get("/session", h.HandleGetCurrentSession)
		r.Get("/time-entries", h.HandleListEntries)
		r.Get("/metrics", h.HandleGetMetrics)
	})

	r.Route("/time-entries", func(r chi.Router) {
		r.Post("/", h.HandleRecordManual)
		r.Post("/{id}/approve", h.HandleApproveEntry)
	})

	r.Get("/metrics", h.HandleGetTeamMetrics)
	r.Get("/alerts", h.HandleListAlerts)
	r.Get("/activities", h.HandleListActivities)

	// Manual sweep triggers
	r.Route("/watchdog", func(r chi.Router) {
		r.Post("/cutoff", h.HandleRunCutoff)
		r.Post("/escalation", h.HandleRunEscalation)
	})
}
