package config

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/techclock/internal/database"
	"github.com/aristath/techclock/internal/modules/settings"
	testingpkg "github.com/aristath/techclock/internal/testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TECHCLOCK_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "19:00", cfg.CutoffTime)
	assert.Equal(t, 2*time.Hour, cfg.EscalationThreshold)
	assert.Equal(t, 2*time.Hour, cfg.EscalationWindow)
	assert.Equal(t, 4*time.Hour, cfg.ForgottenThreshold)
	assert.Equal(t, 8.0, cfg.HoursPerWorkday)
	require.NotNil(t, cfg.Location)
	assert.Equal(t, "America/Argentina/Buenos_Aires", cfg.Location.String())
	assert.Empty(t, cfg.AlertRecipients)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TECHCLOCK_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("CUTOFF_TIME", "18:30")
	t.Setenv("ESCALATION_THRESHOLD", "90m")
	t.Setenv("ALERT_RECIPIENTS", "a@shop.test, b@shop.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "18:30", cfg.CutoffTime)
	assert.Equal(t, 90*time.Minute, cfg.EscalationThreshold)
	assert.Equal(t, []string{"a@shop.test", "b@shop.test"}, cfg.AlertRecipients)
}

func TestLoad_RejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"cutoff", "CUTOFF_TIME", "7pm"},
		{"threshold", "ESCALATION_THRESHOLD", "two hours"},
		{"zero window", "ESCALATION_WINDOW", "0s"},
		{"timezone", "TIMEZONE", "Mars/Olympus"},
		{"forgotten below threshold", "FORGOTTEN_THRESHOLD", "1h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TECHCLOCK_DATA_DIR", t.TempDir())
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestUpdateFromSettings(t *testing.T) {
	t.Setenv("TECHCLOCK_DATA_DIR", t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	db := testingpkg.NewTestDB(t, database.NameTimeTracking)
	svc := settings.NewService(settings.NewRepository(db.Conn(), zerolog.Nop()), cfg.SettingOverrides(), nil, zerolog.Nop())
	ctx := context.Background()

	_, err = svc.Set(ctx, settings.KeyEscalationThresholdMinutes, 45.0)
	require.NoError(t, err)

	require.NoError(t, cfg.UpdateFromSettings(ctx, svc))
	assert.Equal(t, 45*time.Minute, cfg.EscalationThreshold)
	assert.Equal(t, 2*time.Hour, cfg.EscalationWindow)
	assert.Equal(t, 8.0, cfg.HoursPerWorkday)
}
