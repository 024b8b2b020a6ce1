package serviceorders

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/clock"
)

// Store is the read/status-write view of service orders used by the engine.
type Store interface {
	GetOrder(ctx context.Context, id int64) (*ServiceOrder, error)
	AdvanceStatus(ctx context.Context, id int64, next Status, from []Status, reason, timeEntryID string, at time.Time) (bool, error)
}

// advanceable are the statuses recording income time moves to IN_PROGRESS.
var advanceable = []Status{StatusScheduled, StatusAwaitingParts}

// Synchronizer advances a service order when income-generating time is
// recorded against it. It is the only path through which the engine mutates
// order status, and it never moves an order to COMPLETED.
type Synchronizer struct {
	store Store
	clock clock.Clock
	log   zerolog.Logger
}

// NewSynchronizer creates a new synchronizer.
func NewSynchronizer(store Store, clk clock.Clock, log zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		store: store,
		clock: clk,
		log:   log.With().Str("service", "service_state_sync").Logger(),
	}
}

// Sync moves the order to IN_PROGRESS if it is SCHEDULED or AWAITING_PARTS.
// It is a no-op for a nil order ID and for orders already IN_PROGRESS or
// COMPLETED. Returns whether the order changed.
func (s *Synchronizer) Sync(ctx context.Context, timeEntryID string, serviceOrderID *int64) (bool, error) {
	if serviceOrderID == nil {
		return false, nil
	}
	id := *serviceOrderID

	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return false, err
	}
	if order == nil {
		return false, fmt.Errorf("service order %d not found", id)
	}
	if order.Status != StatusScheduled && order.Status != StatusAwaitingParts {
		return false, nil
	}

	changed, err := s.store.AdvanceStatus(ctx, id, StatusInProgress, advanceable,
		"time recorded", timeEntryID, s.clock.Now())
	if err != nil {
		return false, err
	}

	if changed {
		s.log.Info().
			Int64("service_order_id", id).
			Str("previous_status", string(order.Status)).
			Str("time_entry_id", timeEntryID).
			Msg("Service order moved to IN_PROGRESS")
	}
	return changed, nil
}
