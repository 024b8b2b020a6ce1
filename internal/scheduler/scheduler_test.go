package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs int
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run() error {
	j.runs++
	return j.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(time.UTC, zerolog.Nop())

	require.NoError(t, s.AddJob("0 */5 * * * *", &countingJob{}))
	require.NoError(t, s.AddJob("0 0 19 * * *", &countingJob{}))
	assert.Equal(t, 2, s.Entries())

	// Five fields are rejected: schedules carry seconds
	assert.Error(t, s.AddJob("*/5 * * * *", &countingJob{}))
	assert.Equal(t, 2, s.Entries())
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(nil, zerolog.Nop())
	job := &countingJob{}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	job.err = errors.New("boom")
	assert.Error(t, s.RunNow(job))
	assert.Equal(t, 2, job.runs)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(time.UTC, zerolog.Nop())
	require.NoError(t, s.AddJob("@every 1h", &countingJob{}))

	s.Start()
	s.Stop()
}
