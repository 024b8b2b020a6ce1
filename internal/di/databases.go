// Package di provides dependency injection for database connections.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/config"
	"github.com/aristath/techclock/internal/database"
)

// InitializeDatabases opens both databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. timetracking.db - sessions and time entries are the audit trail
	timeTrackingDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "timetracking.db"),
		Profile: database.ProfileLedger, // Maximum safety for the session history
		Name:    database.NameTimeTracking,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize timetracking database: %w", err)
	}
	container.TimeTrackingDB = timeTrackingDB

	// 2. cache.db - computed metrics, safe to delete
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache, // Maximum speed for ephemeral data
		Name:    database.NameCache,
	})
	if err != nil {
		timeTrackingDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	// Apply schemas to all databases (single source of truth)
	for _, db := range []*database.DB{timeTrackingDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("All databases initialized and schemas applied")

	return container, nil
}
