package activities

import (
	"context"
	"sync"

	"github.com/aristath/techclock/internal/domain"
	"github.com/aristath/techclock/internal/events"
)

// Source loads catalog entries.
type Source interface {
	GetByID(ctx context.Context, id int64) (*ActivityType, error)
	List(ctx context.Context) ([]ActivityType, error)
}

// Taxonomy classifies activity type IDs. Entries are immutable to the engine,
// so lookups are cached after the first hit.
type Taxonomy struct {
	source Source

	mu    sync.RWMutex
	cache map[int64]ActivityType
}

// NewTaxonomy creates a taxonomy backed by source.
func NewTaxonomy(source Source) *Taxonomy {
	return &Taxonomy{
		source: source,
		cache:  make(map[int64]ActivityType),
	}
}

// Classify returns the activity type for id, or a NotFound error.
func (t *Taxonomy) Classify(ctx context.Context, id int64) (ActivityType, error) {
	t.mu.RLock()
	cached, ok := t.cache[id]
	t.mu.RUnlock()
	if ok {
		return cached, nil
	}

	at, err := t.source.GetByID(ctx, id)
	if err != nil {
		return ActivityType{}, err
	}
	if at == nil {
		return ActivityType{}, domain.NotFoundf("activity type %d", id)
	}

	t.mu.Lock()
	t.cache[id] = *at
	t.mu.Unlock()

	return *at, nil
}

// List returns the whole catalog.
func (t *Taxonomy) List(ctx context.Context) ([]ActivityType, error) {
	return t.source.List(ctx)
}

// Invalidate drops cached entries after the catalog was reseeded.
func (t *Taxonomy) Invalidate() {
	t.mu.Lock()
	t.cache = make(map[int64]ActivityType)
	t.mu.Unlock()
}

// Subscribe drops the lookup cache whenever the catalog is reseeded.
func (t *Taxonomy) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.ActivityCatalogSeeded, func(events.Event) {
		t.Invalidate()
	})
}
