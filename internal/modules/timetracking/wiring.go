package timetracking

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/clock"
	"github.com/aristath/techclock/internal/events"
	"github.com/aristath/techclock/internal/modules/activities"
	"github.com/aristath/techclock/internal/modules/metrics"
	"github.com/aristath/techclock/internal/modules/serviceorders"
	"github.com/aristath/techclock/internal/modules/stopwatch"
	"github.com/aristath/techclock/internal/modules/timeentries"
)

// Stores are the SQLite handles the engine runs on. Cache may be nil, which
// disables the metrics cache.
type Stores struct {
	Ledger *sql.DB
	Cache  *sql.DB
}

// NewSQLiteEngine builds the engine and its repositories over SQLite. When
// eventManager is set, the metrics cache subscribes to its bus.
func NewSQLiteEngine(stores Stores, eventManager *events.Manager, clk clock.Clock, loc *time.Location, log zerolog.Logger) *Engine {
	taxonomy := activities.NewTaxonomy(activities.NewRepository(stores.Ledger, log))
	orders := serviceorders.NewRepository(stores.Ledger, log)
	sessions := stopwatch.NewRepository(stores.Ledger, log)
	entries := timeentries.NewRepository(stores.Ledger, loc, log)
	synchronizer := serviceorders.NewSynchronizer(orders, clk, log)
	recorder := timeentries.NewRecorder(stores.Ledger, entries, sessions, taxonomy, orders, synchronizer, clk, loc, log)

	var cache *metrics.Cache
	if stores.Cache != nil {
		cache = metrics.NewCache(stores.Cache, log)
		if eventManager != nil {
			cache.Subscribe(eventManager.Bus())
		}
	}

	return NewEngine(Deps{
		Sessions:   sessions,
		Entries:    entries,
		Recorder:   recorder,
		Taxonomy:   taxonomy,
		Orders:     orders,
		Aggregator: metrics.NewAggregator(entries, taxonomy, cache, log),
		Events:     eventManager,
		Clock:      clk,
		Location:   loc,
	}, log)
}
