package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/modules/settings"
	"github.com/aristath/techclock/internal/modules/watchdog"
)

// EscalationRunner runs the escalation sweep
type EscalationRunner interface {
	RunEscalationSweep(ctx context.Context, p watchdog.EscalationParams) (*watchdog.EscalationResult, error)
}

// EscalationSettings resolves the current escalation thresholds
type EscalationSettings interface {
	Escalation(ctx context.Context) (settings.Escalation, error)
}

// EscalationSweepJob alerts on sessions running longer than the threshold.
// Thresholds are read on every run so setting changes apply without a restart.
type EscalationSweepJob struct {
	JobBase
	runner   EscalationRunner
	settings EscalationSettings
}

// NewEscalationSweepJob creates a new EscalationSweepJob
func NewEscalationSweepJob(runner EscalationRunner, escalationSettings EscalationSettings) *EscalationSweepJob {
	return &EscalationSweepJob{
		JobBase:  JobBase{log: zerolog.Nop()},
		runner:   runner,
		settings: escalationSettings,
	}
}

// Name returns the job name
func (j *EscalationSweepJob) Name() string {
	return "escalation_sweep"
}

// Run executes the escalation sweep
func (j *EscalationSweepJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	esc, err := j.settings.Escalation(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve escalation settings: %w", err)
	}

	result, err := j.runner.RunEscalationSweep(ctx, watchdog.EscalationParams{
		Threshold:          esc.Threshold,
		Window:             esc.Window,
		ForgottenThreshold: esc.ForgottenThreshold,
	})
	if err != nil {
		return fmt.Errorf("escalation sweep failed: %w", err)
	}

	j.log.Info().
		Int("alerted", result.Alerted).
		Int("skipped", result.Skipped).
		Int("failures", len(result.Failures)).
		Msg("Escalation sweep job completed")
	return nil
}
