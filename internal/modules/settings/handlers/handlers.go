// Package handlers provides HTTP handlers for runtime settings.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/domain"
	"github.com/aristath/techclock/internal/modules/settings"
)

// SettingsService is the subset of settings.Service used by the handlers
type SettingsService interface {
	GetAll(ctx context.Context) ([]settings.Setting, error)
	Get(ctx context.Context, key string) (settings.Setting, error)
	Set(ctx context.Context, key string, value interface{}) (settings.Setting, error)
}

// Handler provides HTTP handlers for settings endpoints
type Handler struct {
	service SettingsService
	log     zerolog.Logger
}

// NewHandler creates a new settings handler
func NewHandler(service SettingsService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "settings").Logger(),
	}
}

// HandleGetAll handles GET /api/settings
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.GetAll(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, all)
}

// HandleGet handles GET /api/settings/{key}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	setting, err := h.service.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, setting)
}

// HandleUpdate handles PUT /api/settings/{key}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var update settings.SettingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	setting, err := h.service.Set(r.Context(), key, update.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, setting)
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusUnprocessableEntity
	default:
		h.log.Error().Err(err).Msg("Settings request failed")
	}
	http.Error(w, err.Error(), status)
}
