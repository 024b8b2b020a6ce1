package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// jobTimeout bounds a single sweep run
const jobTimeout = 2 * time.Minute

// JobBase carries the logger shared by every job.
// Jobs embed it and get SetLogger for free.
type JobBase struct {
	log zerolog.Logger
}

// SetLogger sets the logger for the job
func (j *JobBase) SetLogger(log zerolog.Logger) {
	j.log = log
}
