// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/config"
	"github.com/aristath/techclock/internal/scheduler"
)

// Maintenance schedules
const (
	checkCoreDatabasesSchedule  = "0 30 3 * * *"  // Daily 03:30
	checkWALCheckpointsSchedule = "0 0 */6 * * *" // Every 6 hours
)

// RegisterJobs creates all jobs and registers them with the scheduler
// Returns JobInstances for manual triggering via API
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	container.Scheduler = scheduler.New(container.Location, log)

	instances := &JobInstances{
		CutoffSweep:         scheduler.NewCutoffSweepJob(container.Watchdog, container.Cutoff),
		EscalationSweep:     scheduler.NewEscalationSweepJob(container.Watchdog, container.SettingsService),
		CheckCoreDatabases:  scheduler.NewCheckCoreDatabasesJob(container.TimeTrackingDB),
		CheckWALCheckpoints: scheduler.NewCheckWALCheckpointsJob(container.TimeTrackingDB, container.CacheDB),
	}

	jobLog := log.With().Str("component", "job").Logger()
	instances.CutoffSweep.SetLogger(jobLog)
	instances.EscalationSweep.SetLogger(jobLog)
	instances.CheckCoreDatabases.SetLogger(jobLog)
	instances.CheckWALCheckpoints.SetLogger(jobLog)

	registrations := []struct {
		schedule string
		job      scheduler.Job
	}{
		{instances.CutoffSweep.Schedule(), instances.CutoffSweep},
		{cfg.EscalationSchedule, instances.EscalationSweep},
		{checkCoreDatabasesSchedule, instances.CheckCoreDatabases},
		{checkWALCheckpointsSchedule, instances.CheckWALCheckpoints},
	}
	for _, reg := range registrations {
		if err := container.Scheduler.AddJob(reg.schedule, reg.job); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", reg.job.Name(), err)
		}
	}

	log.Info().Int("jobs", len(registrations)).Msg("Jobs registered")
	return instances, nil
}
