package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/techclock/internal/database"
	"github.com/aristath/techclock/internal/domain"
	"github.com/aristath/techclock/internal/events"
	testingpkg "github.com/aristath/techclock/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, overrides map[string]interface{}) (*Service, *events.Bus) {
	t.Helper()
	db := testingpkg.NewTestDB(t, database.NameTimeTracking).Conn()
	log := zerolog.Nop()
	bus := events.NewBus(log)
	return NewService(NewRepository(db, log), overrides, events.NewManager(bus, log), log), bus
}

func TestService_GetAllUsesDefaults(t *testing.T) {
	svc, _ := newTestService(t, map[string]interface{}{KeyEscalationThresholdMinutes: 90.0})

	all, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, len(SettingDefaults))

	for _, s := range all {
		assert.False(t, s.Overridden, s.Key)
		if s.Key == KeyEscalationThresholdMinutes {
			assert.Equal(t, 90.0, s.Value)
		}
	}
}

func TestService_SetOverridesAndEmits(t *testing.T) {
	svc, bus := newTestService(t, nil)
	ctx := context.Background()

	var changed []*events.SettingsChangedData
	bus.Subscribe(events.SettingsChanged, func(e events.Event) {
		changed = append(changed, e.Data.(*events.SettingsChangedData))
	})

	setting, err := svc.Set(ctx, KeyEscalationWindowMinutes, 30.0)
	require.NoError(t, err)
	assert.Equal(t, 30.0, setting.Value)
	assert.True(t, setting.Overridden)

	require.Len(t, changed, 1)
	assert.Equal(t, KeyEscalationWindowMinutes, changed[0].Key)
	assert.Equal(t, "30", changed[0].Value)

	esc, err := svc.Escalation(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, esc.Window)
	assert.Equal(t, 120*time.Minute, esc.Threshold)
	assert.Equal(t, 240*time.Minute, esc.ForgottenThreshold)
}

func TestService_SetRejectsInvalid(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value interface{}
		kind  error
	}{
		{"unknown key", "risk_tolerance", 1.0, domain.ErrNotFound},
		{"zero threshold", KeyEscalationThresholdMinutes, 0.0, domain.ErrValidation},
		{"negative window", KeyEscalationWindowMinutes, -5.0, domain.ErrValidation},
		{"non numeric", KeyHoursPerWorkday, "eight", domain.ErrValidation},
		{"recipients must be text", KeyAlertRecipients, 12.0, domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Set(ctx, tt.key, tt.value)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), err.Error())
		})
	}
}

func TestService_RecipientsAndReset(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Set(ctx, KeyAlertRecipients, " lead@shop.test, ,ops@shop.test ")
	require.NoError(t, err)

	esc, err := svc.Escalation(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"lead@shop.test", "ops@shop.test"}, esc.Recipients)

	_, err = svc.Set(ctx, KeyHoursPerWorkday, "7.5")
	require.NoError(t, err)
	hours, err := svc.HoursPerWorkday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7.5, hours)

	require.NoError(t, svc.Reset(ctx, KeyHoursPerWorkday))
	hours, err = svc.HoursPerWorkday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8.0, hours)
}

func TestSplitRecipients(t *testing.T) {
	assert.Nil(t, SplitRecipients(""))
	assert.Equal(t, []string{"a"}, SplitRecipients(" a ,"))
}
