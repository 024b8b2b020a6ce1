package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/techclock/internal/events"
)

// Cache stores computed metrics as msgpack blobs in the cache database.
// Entries are dropped whenever a time entry is recorded for the technician or
// the activity catalog is reseeded, so a hit is always consistent with the ledger.
type Cache struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCache creates a metrics cache over the cache database.
func NewCache(db *sql.DB, log zerolog.Logger) *Cache {
	return &Cache{
		db:  db,
		log: log.With().Str("component", "metrics_cache").Logger(),
	}
}

// CacheKey identifies one computation.
func CacheKey(technicianID int64, from, to string, contractedHours float64) string {
	return fmt.Sprintf("metrics:%d:%s:%s:%s", technicianID, from, to,
		strconv.FormatFloat(contractedHours, 'f', -1, 64))
}

// Get returns a cached computation. Read or decode failures count as a miss.
func (c *Cache) Get(ctx context.Context, key string) (*MonthlyMetrics, bool) {
	var payload []byte
	err := c.db.QueryRowContext(ctx, `SELECT payload FROM metrics_cache WHERE cache_key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to read metrics cache")
		return nil, false
	}

	var m MonthlyMetrics
	if err := msgpack.Unmarshal(payload, &m); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to decode cached metrics")
		return nil, false
	}
	return &m, true
}

// Put stores m under key. Failures are logged; the cache is optional.
func (c *Cache) Put(ctx context.Context, key string, m *MonthlyMetrics) {
	payload, err := msgpack.Marshal(m)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to encode metrics")
		return
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO metrics_cache (cache_key, technician_id, payload, computed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			computed_at = excluded.computed_at
	`, key, m.TechnicianID, payload, time.Now().Unix())
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to write metrics cache")
	}
}

// InvalidateTechnician drops every cached computation for a technician.
func (c *Cache) InvalidateTechnician(ctx context.Context, technicianID int64) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM metrics_cache WHERE technician_id = ?`, technicianID); err != nil {
		return fmt.Errorf("failed to invalidate metrics cache for technician %d: %w", technicianID, err)
	}
	return nil
}

// InvalidateAll drops every cached computation.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM metrics_cache`); err != nil {
		return fmt.Errorf("failed to clear metrics cache: %w", err)
	}
	return nil
}

// Subscribe invalidates a technician's cached metrics whenever one of their
// time entries is recorded, and the whole cache when the activity catalog is
// reseeded, since every fold depends on the activity axes.
func (c *Cache) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.ActivityCatalogSeeded, func(e events.Event) {
		if err := c.InvalidateAll(context.Background()); err != nil {
			c.log.Error().Err(err).Msg("Failed to clear metrics cache after catalog reseed")
		}
	})
	bus.Subscribe(events.TimeEntryRecorded, func(e events.Event) {
		data, ok := e.Data.(*events.TimeEntryData)
		if !ok {
			return
		}
		if err := c.InvalidateTechnician(context.Background(), data.TechnicianID); err != nil {
			c.log.Error().Err(err).Msg("Failed to invalidate metrics cache")
		}
	})
}
