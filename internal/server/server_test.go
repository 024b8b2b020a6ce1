package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/techclock/internal/clock"
	"github.com/aristath/techclock/internal/config"
	"github.com/aristath/techclock/internal/di"
	"github.com/aristath/techclock/internal/scheduler"
)

type failingJob struct{}

func (failingJob) Name() string { return "failing" }
func (failingJob) Run() error   { return errors.New("integrity check returned: corrupt") }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		DataDir:             t.TempDir(),
		Port:                8080,
		Timezone:            "UTC",
		CutoffTime:          "19:00",
		EscalationSchedule:  "0 */5 * * * *",
		EscalationThreshold: 2 * time.Hour,
		EscalationWindow:    2 * time.Hour,
		ForgottenThreshold:  4 * time.Hour,
		HoursPerWorkday:     8,
	}
	require.NoError(t, cfg.Validate())

	clk := clock.NewFake(time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC))
	container, jobs, err := di.Wire(context.Background(), cfg, clk, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	s := New(Config{Log: zerolog.Nop(), Port: cfg.Port, DevMode: true, Container: container})
	all := jobs.ByName()
	all["failing"] = failingJob{}
	s.SetJobs(all)
	return s
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, "GET", "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "techclock", body["service"])
}

func TestSystemStatus(t *testing.T) {
	s := newTestServer(t)

	w := serve(s, "GET", "/api/system/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body SystemStatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Len(t, body.Databases, 2)
	assert.Contains(t, body.Jobs, "cutoff_sweep")
	assert.Contains(t, body.Jobs, "escalation_sweep")
}

func TestTriggerJob(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, serve(s, "POST", "/api/system/jobs/escalation_sweep").Code)
	assert.Equal(t, http.StatusOK, serve(s, "POST", "/api/system/jobs/check_core_databases").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(s, "POST", "/api/system/jobs/failing").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, "POST", "/api/system/jobs/sync_prices").Code)
}

func TestAPIRoutesMounted(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, serve(s, "GET", "/api/activities").Code)
	assert.Equal(t, http.StatusOK, serve(s, "GET", "/api/settings").Code)
	assert.Equal(t, http.StatusOK, serve(s, "GET", "/api/alerts").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, "GET", "/api/sessions/unknown").Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/sessions", nil)
	req.Header.Set("Origin", "http://workshop.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

var _ scheduler.Job = failingJob{}
