/**
 * Package di provides dependency injection type definitions.
 *
 * Container holds every long-lived component of the service. It is built by
 * Wire() and handed to the HTTP server and the sweep CLI.
 */
package di

import (
	"time"

	"github.com/aristath/techclock/internal/clock"
	"github.com/aristath/techclock/internal/database"
	"github.com/aristath/techclock/internal/events"
	"github.com/aristath/techclock/internal/modules/activities"
	"github.com/aristath/techclock/internal/modules/alerts"
	"github.com/aristath/techclock/internal/modules/metrics"
	"github.com/aristath/techclock/internal/modules/serviceorders"
	"github.com/aristath/techclock/internal/modules/settings"
	"github.com/aristath/techclock/internal/modules/stopwatch"
	"github.com/aristath/techclock/internal/modules/timeentries"
	"github.com/aristath/techclock/internal/modules/timetracking"
	"github.com/aristath/techclock/internal/modules/watchdog"
	"github.com/aristath/techclock/internal/scheduler"
)

// Container holds all dependencies for the application
type Container struct {
	// Databases
	TimeTrackingDB *database.DB // sessions, entries, orders, alerts, settings (ledger profile)
	CacheDB        *database.DB // computed metrics (cache profile)

	Clock    clock.Clock
	Location *time.Location

	EventBus     *events.Bus
	EventManager *events.Manager

	// Repositories
	ActivityRepo     *activities.Repository
	ServiceOrderRepo *serviceorders.Repository
	SessionRepo      *stopwatch.Repository
	TimeEntryRepo    *timeentries.Repository
	AlertRepo        *alerts.Repository
	SettingsRepo     *settings.Repository

	// Services
	Taxonomy        *activities.Taxonomy
	Synchronizer    *serviceorders.Synchronizer
	Recorder        *timeentries.Recorder
	MetricsCache    *metrics.Cache
	Aggregator      *metrics.Aggregator
	SettingsService *settings.Service
	AlertService    *alerts.Service
	Engine          *timetracking.Engine
	Watchdog        *watchdog.Watchdog
	Cutoff          watchdog.TimeOfDay

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs for manual triggering
type JobInstances struct {
	CutoffSweep         *scheduler.CutoffSweepJob
	EscalationSweep     *scheduler.EscalationSweepJob
	CheckCoreDatabases  *scheduler.CheckCoreDatabasesJob
	CheckWALCheckpoints *scheduler.CheckWALCheckpointsJob
}

// ByName returns the jobs keyed by their scheduler name
func (j *JobInstances) ByName() map[string]scheduler.Job {
	return map[string]scheduler.Job{
		j.CutoffSweep.Name():         j.CutoffSweep,
		j.EscalationSweep.Name():     j.EscalationSweep,
		j.CheckCoreDatabases.Name():  j.CheckCoreDatabases,
		j.CheckWALCheckpoints.Name(): j.CheckWALCheckpoints,
	}
}

// Close closes both databases
func (c *Container) Close() {
	if c.TimeTrackingDB != nil {
		c.TimeTrackingDB.Close()
	}
	if c.CacheDB != nil {
		c.CacheDB.Close()
	}
}
