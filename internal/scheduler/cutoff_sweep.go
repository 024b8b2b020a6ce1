package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/modules/watchdog"
)

// CutoffRunner runs the daily cutoff sweep
type CutoffRunner interface {
	RunCutoffSweep(ctx context.Context, cutoff watchdog.TimeOfDay) (*watchdog.CutoffResult, error)
}

// CutoffSweepJob closes sessions left running past the daily cutoff
type CutoffSweepJob struct {
	JobBase
	runner CutoffRunner
	cutoff watchdog.TimeOfDay
}

// NewCutoffSweepJob creates a new CutoffSweepJob
func NewCutoffSweepJob(runner CutoffRunner, cutoff watchdog.TimeOfDay) *CutoffSweepJob {
	return &CutoffSweepJob{
		JobBase: JobBase{log: zerolog.Nop()},
		runner:  runner,
		cutoff:  cutoff,
	}
}

// Name returns the job name
func (j *CutoffSweepJob) Name() string {
	return "cutoff_sweep"
}

// Schedule is the cron spec firing at the cutoff time every day
func (j *CutoffSweepJob) Schedule() string {
	return fmt.Sprintf("0 %d %d * * *", j.cutoff.Minute, j.cutoff.Hour)
}

// Run executes the cutoff sweep. Per-session failures are already logged by
// the watchdog; the job fails only when the sweep could not run at all.
func (j *CutoffSweepJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := j.runner.RunCutoffSweep(ctx, j.cutoff)
	if err != nil {
		return fmt.Errorf("cutoff sweep failed: %w", err)
	}

	j.log.Info().
		Str("cutoff", j.cutoff.String()).
		Int("closed", result.Closed).
		Int("failures", len(result.Failures)).
		Msg("Cutoff sweep job completed")
	return nil
}
