package scheduler

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/database"
)

// CheckCoreDatabasesJob verifies integrity of the time-tracking database.
// The cache database is disposable and not checked.
type CheckCoreDatabasesJob struct {
	JobBase
	timeTrackingDB *database.DB
}

// NewCheckCoreDatabasesJob creates a new CheckCoreDatabasesJob
func NewCheckCoreDatabasesJob(timeTrackingDB *database.DB) *CheckCoreDatabasesJob {
	return &CheckCoreDatabasesJob{
		JobBase:        JobBase{log: zerolog.Nop()},
		timeTrackingDB: timeTrackingDB,
	}
}

// Name returns the job name
func (j *CheckCoreDatabasesJob) Name() string {
	return "check_core_databases"
}

// Run executes the check core databases job
func (j *CheckCoreDatabasesJob) Run() error {
	databases := map[string]*database.DB{
		database.NameTimeTracking: j.timeTrackingDB,
	}

	for name, db := range databases {
		if db == nil {
			j.log.Warn().Str("database", name).Msg("Database not initialized, skipping")
			continue
		}

		if err := j.checkDatabaseIntegrity(name, db.Conn()); err != nil {
			// Core database corruption is critical - cannot auto-recover
			j.log.Error().
				Err(err).
				Str("database", name).
				Msg("Core database integrity check failed")
			return fmt.Errorf("database %s is corrupted: %w", name, err)
		}

		j.log.Debug().Str("database", name).Msg("Database integrity OK")
	}

	j.log.Info().Msg("All core databases integrity check passed")
	return nil
}

// checkDatabaseIntegrity runs SQLite's PRAGMA integrity_check
func (j *CheckCoreDatabasesJob) checkDatabaseIntegrity(name string, db *sql.DB) error {
	var result string
	err := db.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check returned: %s", result)
	}

	return nil
}
