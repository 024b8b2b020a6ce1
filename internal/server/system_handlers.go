package server

import (
	"encoding/json"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/database"
	"github.com/aristath/techclock/internal/scheduler"
)

// SystemHandlers handles system monitoring and maintenance endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	databases   []*database.DB
	jobs        map[string]scheduler.Job
}

// NewSystemHandlers creates system handlers over the given databases
func NewSystemHandlers(log zerolog.Logger, databases ...*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		startupTime: time.Now(),
		databases:   databases,
		jobs:        map[string]scheduler.Job{},
	}
}

// SetJobs registers job instances for manual triggering
func (h *SystemHandlers) SetJobs(jobs map[string]scheduler.Job) {
	h.jobs = jobs
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Databases     []DBInfo `json:"databases"`
	Jobs          []string `json:"jobs"`
	LastChecked   string   `json:"last_checked"`
}

// DBInfo represents information about a single database
type DBInfo struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	Profile string  `json:"profile"`
	SizeMB  float64 `json:"size_mb"`
	Healthy bool    `json:"healthy"`
	Error   string  `json:"error,omitempty"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		Databases:     make([]DBInfo, 0, len(h.databases)),
		Jobs:          make([]string, 0, len(h.jobs)),
		LastChecked:   time.Now().Format(time.RFC3339),
	}

	for _, db := range h.databases {
		info := DBInfo{
			Name:    db.Name(),
			Path:    db.Path(),
			Profile: string(db.Profile()),
			Healthy: true,
		}
		if stat, err := os.Stat(db.Path()); err == nil {
			info.SizeMB = float64(stat.Size()) / 1024 / 1024
		}
		if err := db.QuickCheck(r.Context()); err != nil {
			info.Healthy = false
			info.Error = err.Error()
			response.Status = "degraded"
		}
		response.Databases = append(response.Databases, info)
	}

	for name := range h.jobs {
		response.Jobs = append(response.Jobs, name)
	}
	sort.Strings(response.Jobs)

	h.writeJSON(w, http.StatusOK, response)
}

// HandleTriggerJob handles POST /api/system/jobs/{name}. The job runs
// synchronously and its error, if any, is returned.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": "Unknown job " + name})
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job trigger")
	if err := job.Run(); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": name + " completed"})
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
