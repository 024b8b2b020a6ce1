package server

import (
	"encoding/json"
	"net/http"
)

// handleHealth handles health check requests. The service is unhealthy when
// the time-tracking database does not answer.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if s.timeTrackingDB != nil {
		if err := s.timeTrackingDB.QuickCheck(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("Health check failed")
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}

	response := map[string]interface{}{
		"status":  status,
		"version": "1.0.0",
		"service": "techclock",
	}

	s.writeJSON(w, code, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
