package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/database"
)

// CheckWALCheckpointsJob monitors WAL checkpoint status
type CheckWALCheckpointsJob struct {
	JobBase
	timeTrackingDB *database.DB
	cacheDB        *database.DB
}

// NewCheckWALCheckpointsJob creates a new CheckWALCheckpointsJob
func NewCheckWALCheckpointsJob(timeTrackingDB, cacheDB *database.DB) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		JobBase:        JobBase{log: zerolog.Nop()},
		timeTrackingDB: timeTrackingDB,
		cacheDB:        cacheDB,
	}
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run executes the check WAL checkpoints job
func (j *CheckWALCheckpointsJob) Run() error {
	databases := map[string]*database.DB{
		database.NameTimeTracking: j.timeTrackingDB,
		database.NameCache:        j.cacheDB,
	}

	checkedCount := 0
	for name, db := range databases {
		if db == nil {
			continue
		}

		// Check WAL checkpoint status
		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, log, checkpointed int
		err := db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &log, &checkpointed)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", name).
				Msg("Failed to check WAL checkpoint")
			continue
		}

		// Log if WAL is growing large
		if log > 1000 {
			j.log.Warn().
				Str("database", name).
				Int("wal_frames", log).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, checkpoint may be needed")
		} else {
			j.log.Debug().
				Str("database", name).
				Int("wal_frames", log).
				Msg("WAL checkpoint status OK")
		}

		checkedCount++
	}

	j.log.Info().
		Int("checked", checkedCount).
		Msg("WAL checkpoint check completed")

	return nil
}
