package timeentries

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/clock"
	"github.com/aristath/techclock/internal/database"
	"github.com/aristath/techclock/internal/domain"
	"github.com/aristath/techclock/internal/modules/activities"
	"github.com/aristath/techclock/internal/modules/serviceorders"
	"github.com/aristath/techclock/internal/modules/stopwatch"
)

// Classifier resolves activity types.
type Classifier interface {
	Classify(ctx context.Context, id int64) (activities.ActivityType, error)
}

// OrderReader reads service orders.
type OrderReader interface {
	GetOrder(ctx context.Context, id int64) (*serviceorders.ServiceOrder, error)
}

// StatusSynchronizer advances an order after time is recorded against it.
type StatusSynchronizer interface {
	Sync(ctx context.Context, timeEntryID string, serviceOrderID *int64) (bool, error)
}

// SessionCloser persists the RUNNING -> STOPPED write.
type SessionCloser interface {
	CloseTx(ctx context.Context, tx *sql.Tx, s stopwatch.Session) (bool, error)
}

// Recorder turns closed sessions and manual input into time entries.
type Recorder struct {
	db       *sql.DB
	entries  *Repository
	sessions SessionCloser
	taxonomy Classifier
	orders   OrderReader
	sync     StatusSynchronizer
	clock    clock.Clock
	loc      *time.Location
	log      zerolog.Logger
}

// NewRecorder creates a new recorder. db must be the database entries and
// sessions live in; the session close and the entry insert share a transaction.
func NewRecorder(
	db *sql.DB,
	entries *Repository,
	sessions SessionCloser,
	taxonomy Classifier,
	orders OrderReader,
	sync StatusSynchronizer,
	clk clock.Clock,
	loc *time.Location,
	log zerolog.Logger,
) *Recorder {
	if loc == nil {
		loc = time.Local
	}
	return &Recorder{
		db:       db,
		entries:  entries,
		sessions: sessions,
		taxonomy: taxonomy,
		orders:   orders,
		sync:     sync,
		clock:    clk,
		loc:      loc,
		log:      log.With().Str("service", "time_entry_recorder").Logger(),
	}
}

// Record persists a session that has just been stopped and the entry derived
// from it, atomically. If the session was already closed by an earlier call,
// the entry that call produced is returned and nothing is written. An entry
// that would overlap other recorded time of the technician is a Validation
// error and the whole write is rolled back, so the session stays RUNNING.
//
// After commit, a retained service order is synchronized. Sync failures are
// logged; the entry stands.
func (r *Recorder) Record(ctx context.Context, closed stopwatch.Session) (*TimeEntry, error) {
	if closed.State() != stopwatch.StateStopped || closed.EndTime == nil {
		return nil, domain.Statef("session %s is %s, only stopped sessions are recorded", closed.ID, closed.State())
	}

	orderID, err := r.attribute(ctx, closed.ActivityTypeID, closed.ServiceOrderID)
	if err != nil {
		return nil, err
	}

	entry := &TimeEntry{
		ID:             uuid.NewString(),
		SessionID:      closed.ID,
		TechnicianID:   closed.TechnicianID,
		StartTime:      closed.StartTime.In(r.loc),
		EndTime:        closed.EndTime.In(r.loc),
		ActivityTypeID: closed.ActivityTypeID,
		ServiceOrderID: orderID,
		Description:    closed.Description,
		Source:         SourceSession,
		CreatedAt:      r.clock.Now().In(r.loc),
	}
	entry.Date = entry.StartTime.Format(DateLayout)
	entry.derive()

	var existing *TimeEntry
	err = database.WithTransactionContext(ctx, r.db, func(tx *sql.Tx) error {
		updated, err := r.sessions.CloseTx(ctx, tx, closed)
		if err != nil {
			return err
		}
		if !updated {
			existing, err = r.entries.getBySessionID(ctx, tx, closed.ID)
			if err != nil {
				return err
			}
			if existing == nil {
				return domain.Statef("session %s is no longer running", closed.ID)
			}
			return nil
		}
		created, err := r.entries.CreateTx(ctx, tx, entry)
		if err != nil {
			return err
		}
		if !created {
			return domain.Validationf("technician %d already has time recorded between %s and %s",
				entry.TechnicianID, entry.StartTime.Format(time.RFC3339), entry.EndTime.Format(time.RFC3339))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		r.log.Debug().Str("session_id", closed.ID).Msg("Session already recorded, returning existing entry")
		return existing, nil
	}

	r.log.Info().
		Str("time_entry_id", entry.ID).
		Str("session_id", closed.ID).
		Int64("technician_id", entry.TechnicianID).
		Float64("hours", entry.DurationHours).
		Str("closed_by", string(closed.ClosedBy)).
		Msg("Time entry recorded")

	r.syncOrder(ctx, entry)
	return entry, nil
}

// ManualEntry is a time interval typed in by a technician or supervisor.
type ManualEntry struct {
	TechnicianID   int64  `json:"technician_id"`
	Date           string `json:"date"`  // YYYY-MM-DD
	Start          string `json:"start"` // HH:MM
	End            string `json:"end"`   // HH:MM
	ActivityTypeID int64  `json:"activity_type_id"`
	ServiceOrderID *int64 `json:"service_order_id,omitempty"`
	Description    string `json:"description"`
}

// RecordManual validates and persists a manually entered interval. An end
// earlier than the start is read as crossing midnight and logged, since it is
// just as likely a typo. Equal start and end, an overlap with another entry of
// the same technician, or an end after the start of the technician's running
// session are Validation errors.
func (r *Recorder) RecordManual(ctx context.Context, m ManualEntry) (*TimeEntry, error) {
	if m.TechnicianID <= 0 {
		return nil, domain.Validationf("technician id must be positive")
	}

	day, err := time.ParseInLocation(DateLayout, m.Date, r.loc)
	if err != nil {
		return nil, domain.Validationf("invalid date %q", m.Date)
	}
	start, err := parseClock(day, m.Start, r.loc)
	if err != nil {
		return nil, err
	}
	end, err := parseClock(day, m.End, r.loc)
	if err != nil {
		return nil, err
	}
	if start.Equal(end) {
		return nil, domain.Validationf("start and end are both %s", m.Start)
	}
	_, wrapped := ClockDuration(start, end)
	if wrapped {
		end = end.AddDate(0, 0, 1)
	}

	orderID, err := r.attribute(ctx, m.ActivityTypeID, m.ServiceOrderID)
	if err != nil {
		return nil, err
	}

	entry := &TimeEntry{
		ID:             uuid.NewString(),
		TechnicianID:   m.TechnicianID,
		Date:           day.Format(DateLayout),
		StartTime:      start,
		EndTime:        end,
		ActivityTypeID: m.ActivityTypeID,
		ServiceOrderID: orderID,
		Description:    strings.TrimSpace(m.Description),
		Source:         SourceManual,
		CreatedAt:      r.clock.Now().In(r.loc),
	}
	entry.derive()
	if wrapped {
		r.log.Warn().
			Int64("technician_id", m.TechnicianID).
			Str("date", m.Date).
			Str("start", m.Start).
			Str("end", m.End).
			Float64("hours", entry.DurationHours).
			Msg("Manual entry ends before it starts, assuming it crosses midnight")
	}

	created, err := r.entries.CreateIfNoOverlap(ctx, entry)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, domain.Validationf("technician %d already has time recorded or running between %s and %s on %s",
			m.TechnicianID, m.Start, m.End, entry.Date)
	}

	r.log.Info().
		Str("time_entry_id", entry.ID).
		Int64("technician_id", entry.TechnicianID).
		Float64("hours", entry.DurationHours).
		Msg("Manual time entry recorded")

	r.syncOrder(ctx, entry)
	return entry, nil
}

// attribute applies the service-reference rules: income-producing time must
// reference an order that is not COMPLETED; any other time never keeps one.
func (r *Recorder) attribute(ctx context.Context, activityTypeID int64, serviceOrderID *int64) (*int64, error) {
	at, err := r.taxonomy.Classify(ctx, activityTypeID)
	if err != nil {
		return nil, err
	}

	if !activities.IncomeProducing(at) {
		if serviceOrderID != nil {
			r.log.Debug().
				Int64("activity_type_id", activityTypeID).
				Int64("service_order_id", *serviceOrderID).
				Msg("Discarding service order on non-income activity")
		}
		return nil, nil
	}

	if serviceOrderID == nil {
		return nil, domain.Validationf("activity %q requires a service order", at.Name)
	}
	order, err := r.orders.GetOrder(ctx, *serviceOrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.Validationf("service order %d does not exist", *serviceOrderID)
	}
	if order.Status == serviceorders.StatusCompleted {
		return nil, domain.Validationf("service order %d is already completed", *serviceOrderID)
	}

	id := *serviceOrderID
	return &id, nil
}

func (r *Recorder) syncOrder(ctx context.Context, entry *TimeEntry) {
	if entry.ServiceOrderID == nil || r.sync == nil {
		return
	}
	if _, err := r.sync.Sync(ctx, entry.ID, entry.ServiceOrderID); err != nil {
		r.log.Error().
			Err(err).
			Str("time_entry_id", entry.ID).
			Int64("service_order_id", *entry.ServiceOrderID).
			Msg("Failed to synchronize service order status")
	}
}

func parseClock(day time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return time.Time{}, domain.Validationf("invalid time %q, expected HH:MM", hhmm)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}
