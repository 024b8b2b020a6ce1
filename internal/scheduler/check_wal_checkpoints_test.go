package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/techclock/internal/database"
	testingpkg "github.com/aristath/techclock/internal/testing"
)

func TestCheckWALCheckpointsJob_Name(t *testing.T) {
	job := NewCheckWALCheckpointsJob(nil, nil)
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_Run_NoDatabases(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	job := NewCheckWALCheckpointsJob(nil, nil)
	job.SetLogger(log)

	err := job.Run()
	assert.NoError(t, err) // Should handle nil databases gracefully
}

func TestCheckWALCheckpointsJob_Run_BothDatabases(t *testing.T) {
	job := NewCheckWALCheckpointsJob(
		testingpkg.NewTestDB(t, database.NameTimeTracking),
		testingpkg.NewTestDB(t, database.NameCache),
	)

	assert.NoError(t, job.Run())
}
