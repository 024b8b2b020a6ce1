// Package handlers provides the HTTP API over the time-tracking engine.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/domain"
	"github.com/aristath/techclock/internal/modules/alerts"
	"github.com/aristath/techclock/internal/modules/metrics"
	"github.com/aristath/techclock/internal/modules/settings"
	"github.com/aristath/techclock/internal/modules/stopwatch"
	"github.com/aristath/techclock/internal/modules/timeentries"
	"github.com/aristath/techclock/internal/modules/timetracking"
	"github.com/aristath/techclock/internal/modules/watchdog"
)

const defaultAlertLimit = 50

// Sweeper runs the watchdog sweeps on demand
type Sweeper interface {
	RunCutoffSweep(ctx context.Context, cutoff watchdog.TimeOfDay) (*watchdog.CutoffResult, error)
	RunEscalationSweep(ctx context.Context, p watchdog.EscalationParams) (*watchdog.EscalationResult, error)
}

// AlertLister lists recently raised alerts
type AlertLister interface {
	Recent(ctx context.Context, limit int) ([]alerts.Alert, error)
}

// SweepSettings resolves the runtime-overridable thresholds
type SweepSettings interface {
	Escalation(ctx context.Context) (settings.Escalation, error)
	HoursPerWorkday(ctx context.Context) (float64, error)
}

// Handler handles time-tracking HTTP requests
type Handler struct {
	engine   *timetracking.Engine
	sweeper  Sweeper
	alerts   AlertLister
	settings SweepSettings
	cutoff   watchdog.TimeOfDay
	log      zerolog.Logger
}

// NewHandler creates a new time-tracking handler
func NewHandler(
	engine *timetracking.Engine,
	sweeper Sweeper,
	alertLister AlertLister,
	sweepSettings SweepSettings,
	cutoff watchdog.TimeOfDay,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		engine:   engine,
		sweeper:  sweeper,
		alerts:   alertLister,
		settings: sweepSettings,
		cutoff:   cutoff,
		log:      log.With().Str("handler", "timetracking").Logger(),
	}
}

// CurrentSessionResponse is the body of GET /api/technicians/{id}/session
type CurrentSessionResponse struct {
	State   stopwatch.State    `json:"state"`
	Session *stopwatch.Session `json:"session"`
}

// ApproveRequest is the body of POST /api/time-entries/{id}/approve
type ApproveRequest struct {
	ApproverID int64 `json:"approver_id"`
}

// HandleStartSession handles POST /api/sessions
func (h *Handler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	var req timetracking.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.engine.StartSession(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, session)
}

// HandleStopSession handles POST /api/sessions/{id}/stop
func (h *Handler) HandleStopSession(w http.ResponseWriter, r *http.Request) {
	entry, err := h.engine.StopSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, entry)
}

// HandleGetSession handles GET /api/sessions/{id}
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.engine.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, session)
}

// HandleGetCurrentSession handles GET /api/technicians/{id}/session
func (h *Handler) HandleGetCurrentSession(w http.ResponseWriter, r *http.Request) {
	technicianID, ok := h.technicianID(w, r)
	if !ok {
		return
	}

	session, err := h.engine.GetCurrentSession(r.Context(), technicianID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, CurrentSessionResponse{State: session.State(), Session: session})
}

// HandleListEntries handles GET /api/technicians/{id}/time-entries
func (h *Handler) HandleListEntries(w http.ResponseWriter, r *http.Request) {
	technicianID, ok := h.technicianID(w, r)
	if !ok {
		return
	}
	from, to, err := h.period(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	entries, err := h.engine.ListEntries(r.Context(), technicianID, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []timeentries.TimeEntry{}
	}
	h.writeData(w, http.StatusOK, entries)
}

// HandleGetMetrics handles GET /api/technicians/{id}/metrics
func (h *Handler) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	technicianID, ok := h.technicianID(w, r)
	if !ok {
		return
	}
	from, to, contracted, err := h.metricsQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.engine.ComputeMetrics(r.Context(), technicianID, from, to, contracted)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, result)
}

// HandleGetTeamMetrics handles GET /api/metrics
func (h *Handler) HandleGetTeamMetrics(w http.ResponseWriter, r *http.Request) {
	from, to, contracted, err := h.metricsQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.engine.ComputeTeamMetrics(r.Context(), from, to, contracted)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if result == nil {
		result = []metrics.MonthlyMetrics{}
	}
	h.writeData(w, http.StatusOK, result)
}

// HandleRecordManual handles POST /api/time-entries
func (h *Handler) HandleRecordManual(w http.ResponseWriter, r *http.Request) {
	var req timeentries.ManualEntry
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.engine.RecordManual(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, entry)
}

// HandleApproveEntry handles POST /api/time-entries/{id}/approve
func (h *Handler) HandleApproveEntry(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.engine.ApproveEntry(r.Context(), chi.URLParam(r, "id"), req.ApproverID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, entry)
}

// HandleRunCutoff handles POST /api/watchdog/cutoff. An optional ?cutoff=HH:MM
// replaces the configured cutoff for this run.
func (h *Handler) HandleRunCutoff(w http.ResponseWriter, r *http.Request) {
	cutoff := h.cutoff
	if raw := r.URL.Query().Get("cutoff"); raw != "" {
		parsed, err := watchdog.ParseTimeOfDay(raw)
		if err != nil {
			h.writeError(w, domain.Validationf("%v", err))
			return
		}
		cutoff = parsed
	}

	result, err := h.sweeper.RunCutoffSweep(r.Context(), cutoff)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, result)
}

// HandleRunEscalation handles POST /api/watchdog/escalation
func (h *Handler) HandleRunEscalation(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "dry_run must be a boolean", http.StatusBadRequest)
			return
		}
		dryRun = parsed
	}

	esc, err := h.settings.Escalation(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.sweeper.RunEscalationSweep(r.Context(), watchdog.EscalationParams{
		Threshold:          esc.Threshold,
		Window:             esc.Window,
		ForgottenThreshold: esc.ForgottenThreshold,
		DryRun:             dryRun,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, result)
}

// HandleListAlerts handles GET /api/alerts
func (h *Handler) HandleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	list, err := h.alerts.Recent(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []alerts.Alert{}
	}
	h.writeData(w, http.StatusOK, list)
}

// HandleListActivities handles GET /api/activities
func (h *Handler) HandleListActivities(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.Activities(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeData(w, http.StatusOK, list)
}

func (h *Handler) technicianID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "technician id must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// period reads ?from and ?to (YYYY-MM-DD, inclusive). Missing bounds default
// to the current month in the engine's location.
func (h *Handler) period(r *http.Request) (time.Time, time.Time, error) {
	loc := h.engine.Location()
	from, to := metrics.MonthBounds(h.engine.Now().In(loc))

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.ParseInLocation(timeentries.DateLayout, raw, loc)
		if err != nil {
			return time.Time{}, time.Time{}, domain.Validationf("from must be YYYY-MM-DD, got %q", raw)
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.ParseInLocation(timeentries.DateLayout, raw, loc)
		if err != nil {
			return time.Time{}, time.Time{}, domain.Validationf("to must be YYYY-MM-DD, got %q", raw)
		}
		to = parsed
	}
	return from, to, nil
}

// metricsQuery adds ?contracted_hours, which defaults to the weekday count of
// the period times the configured hours per workday.
func (h *Handler) metricsQuery(r *http.Request) (time.Time, time.Time, float64, error) {
	from, to, err := h.period(r)
	if err != nil {
		return time.Time{}, time.Time{}, 0, err
	}

	if raw := r.URL.Query().Get("contracted_hours"); raw != "" {
		contracted, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return time.Time{}, time.Time{}, 0, domain.Validationf("contracted_hours must be a number, got %q", raw)
		}
		return from, to, contracted, nil
	}

	hoursPerDay, err := h.settings.HoursPerWorkday(r.Context())
	if err != nil {
		return time.Time{}, time.Time{}, 0, err
	}
	return from, to, metrics.ContractedHours(from, to, hoursPerDay), nil
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}
	h.writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
	})
}

// statusFor maps an engine error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
