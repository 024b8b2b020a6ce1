// Package di provides dependency injection for repositories.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/modules/activities"
	"github.com/aristath/techclock/internal/modules/alerts"
	"github.com/aristath/techclock/internal/modules/serviceorders"
	"github.com/aristath/techclock/internal/modules/settings"
	"github.com/aristath/techclock/internal/modules/stopwatch"
	"github.com/aristath/techclock/internal/modules/timeentries"
)

// InitializeRepositories creates all repositories over the time-tracking database
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.TimeTrackingDB == nil {
		return fmt.Errorf("container has no timetracking database")
	}
	if container.Location == nil {
		return fmt.Errorf("container has no location")
	}

	db := container.TimeTrackingDB.Conn()

	container.ActivityRepo = activities.NewRepository(db, log)
	container.ServiceOrderRepo = serviceorders.NewRepository(db, log)
	container.SessionRepo = stopwatch.NewRepository(db, log)
	container.TimeEntryRepo = timeentries.NewRepository(db, container.Location, log)
	container.AlertRepo = alerts.NewRepository(db, log)
	container.SettingsRepo = settings.NewRepository(db, log)

	log.Info().Msg("Repositories initialized")
	return nil
}
