// Package timetracking is the technician time-tracking engine: it starts and
// stops stopwatch sessions, records time entries, and serves metrics.
package timetracking

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/clock"
	"github.com/aristath/techclock/internal/domain"
	"github.com/aristath/techclock/internal/events"
	"github.com/aristath/techclock/internal/modules/activities"
	"github.com/aristath/techclock/internal/modules/metrics"
	"github.com/aristath/techclock/internal/modules/serviceorders"
	"github.com/aristath/techclock/internal/modules/stopwatch"
	"github.com/aristath/techclock/internal/modules/timeentries"
)

// OrderFinder reads service orders and resolves reference codes.
type OrderFinder interface {
	GetOrder(ctx context.Context, id int64) (*serviceorders.ServiceOrder, error)
	FindByReference(ctx context.Context, referenceCode string, statuses ...serviceorders.Status) ([]int64, error)
}

// Classifier resolves activity types.
type Classifier interface {
	Classify(ctx context.Context, id int64) (activities.ActivityType, error)
	List(ctx context.Context) ([]activities.ActivityType, error)
}

// Deps are the engine's collaborators.
type Deps struct {
	Sessions   *stopwatch.Repository
	Entries    *timeentries.Repository
	Recorder   *timeentries.Recorder
	Taxonomy   Classifier
	Orders     OrderFinder
	Aggregator *metrics.Aggregator
	Events     *events.Manager
	Clock      clock.Clock
	Location   *time.Location
}

// Engine exposes the time-tracking operations.
type Engine struct {
	sessions   *stopwatch.Repository
	entries    *timeentries.Repository
	recorder   *timeentries.Recorder
	taxonomy   Classifier
	orders     OrderFinder
	aggregator *metrics.Aggregator
	events     *events.Manager
	clock      clock.Clock
	loc        *time.Location
	log        zerolog.Logger
}

// NewEngine creates the engine.
func NewEngine(deps Deps, log zerolog.Logger) *Engine {
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		sessions:   deps.Sessions,
		entries:    deps.Entries,
		recorder:   deps.Recorder,
		taxonomy:   deps.Taxonomy,
		orders:     deps.Orders,
		aggregator: deps.Aggregator,
		events:     deps.Events,
		clock:      deps.Clock,
		loc:        loc,
		log:        log.With().Str("service", "timetracking").Logger(),
	}
}

// StartRequest are the inputs to StartSession.
type StartRequest struct {
	TechnicianID         int64  `json:"technician_id"`
	ActivityTypeID       int64  `json:"activity_type_id"`
	ServiceOrderID       *int64 `json:"service_order_id,omitempty"`
	ServiceReferenceCode string `json:"service_reference_code,omitempty"`
	Description          string `json:"description"`
}

// StartSession starts a stopwatch for a technician.
//
// Income-producing activities must be tied to a service order: either the
// given ID (which must exist and not be COMPLETED) or a reference code that
// resolves to exactly one IN_PROGRESS order. Any other activity never keeps a
// service order. A technician with a running session gets a Conflict error;
// the check and the insert are one atomic statement.
func (e *Engine) StartSession(ctx context.Context, req StartRequest) (*stopwatch.Session, error) {
	at, err := e.taxonomy.Classify(ctx, req.ActivityTypeID)
	if err != nil {
		return nil, err
	}

	orderID, err := e.resolveOrder(ctx, at, req.ServiceOrderID, req.ServiceReferenceCode)
	if err != nil {
		return nil, err
	}

	session, err := stopwatch.Start(stopwatch.StartParams{
		TechnicianID:   req.TechnicianID,
		ActivityTypeID: req.ActivityTypeID,
		ServiceOrderID: orderID,
		Description:    req.Description,
	}, e.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := e.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	e.log.Info().
		Str("session_id", session.ID).
		Int64("technician_id", session.TechnicianID).
		Int64("activity_type_id", session.ActivityTypeID).
		Msg("Session started")

	e.emit(&events.SessionData{
		Type:           events.SessionStarted,
		SessionID:      session.ID,
		TechnicianID:   session.TechnicianID,
		ActivityTypeID: session.ActivityTypeID,
		ServiceOrderID: session.ServiceOrderID,
	})
	return &session, nil
}

func (e *Engine) resolveOrder(ctx context.Context, at activities.ActivityType, orderID *int64, referenceCode string) (*int64, error) {
	if !activities.IncomeProducing(at) {
		return nil, nil
	}

	if orderID != nil {
		order, err := e.orders.GetOrder(ctx, *orderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, domain.NotFoundf("service order %d", *orderID)
		}
		if order.Status == serviceorders.StatusCompleted {
			return nil, domain.Validationf("service order %d is already completed", *orderID)
		}
		id := *orderID
		return &id, nil
	}

	ref := strings.TrimSpace(referenceCode)
	if ref == "" {
		return nil, domain.Validationf("activity %q requires a service order or reference code", at.Name)
	}

	ids, err := e.orders.FindByReference(ctx, ref, serviceorders.StatusInProgress)
	if err != nil {
		return nil, err
	}
	switch len(ids) {
	case 1:
		return &ids[0], nil
	case 0:
		return nil, domain.Validationf("no in-progress service order with reference %q", ref)
	default:
		return nil, domain.Validationf("reference %q matches %d in-progress service orders", ref, len(ids))
	}
}

// StopSession stops a running session and records its time entry in the same
// operation. Stopping an already stopped session returns the entry it
// produced; replayed stop requests are not errors.
func (e *Engine) StopSession(ctx context.Context, sessionID string) (*timeentries.TimeEntry, error) {
	return e.close(ctx, sessionID, func(s stopwatch.Session) (stopwatch.Session, error) {
		return stopwatch.Stop(s, e.clock.Now())
	}, events.SessionStopped)
}

// AutoClose is the watchdog's stop: identical to StopSession except the end
// time is forced to cutoff when now is past it.
func (e *Engine) AutoClose(ctx context.Context, sessionID string, cutoff time.Time) (*timeentries.TimeEntry, error) {
	return e.close(ctx, sessionID, func(s stopwatch.Session) (stopwatch.Session, error) {
		return stopwatch.AutoClose(s, e.clock.Now(), cutoff)
	}, events.SessionAutoClosed)
}

func (e *Engine) close(ctx context.Context, sessionID string, transition func(stopwatch.Session) (stopwatch.Session, error), eventType events.EventType) (*timeentries.TimeEntry, error) {
	s, err := e.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, domain.NotFoundf("session %s", sessionID)
	}

	if s.State() == stopwatch.StateStopped {
		entry, err := e.entries.GetBySessionID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, domain.Statef("session %s is stopped but has no time entry", sessionID)
		}
		return entry, nil
	}

	closed, err := transition(*s)
	if err != nil {
		return nil, err
	}

	entry, err := e.recorder.Record(ctx, closed)
	if err != nil {
		return nil, err
	}

	e.emit(&events.SessionData{
		Type:           eventType,
		SessionID:      s.ID,
		TechnicianID:   s.TechnicianID,
		ActivityTypeID: s.ActivityTypeID,
		ServiceOrderID: entry.ServiceOrderID,
	})
	e.emitEntry(entry, events.TimeEntryRecorded)
	return entry, nil
}

// GetCurrentSession returns the technician's running session, or nil.
func (e *Engine) GetCurrentSession(ctx context.Context, technicianID int64) (*stopwatch.Session, error) {
	return e.sessions.GetActiveByTechnician(ctx, technicianID)
}

// GetSession returns a session by ID.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*stopwatch.Session, error) {
	s, err := e.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, domain.NotFoundf("session %s", sessionID)
	}
	return s, nil
}

// RecordManual records a manually entered interval.
func (e *Engine) RecordManual(ctx context.Context, m timeentries.ManualEntry) (*timeentries.TimeEntry, error) {
	entry, err := e.recorder.RecordManual(ctx, m)
	if err != nil {
		return nil, err
	}
	e.emitEntry(entry, events.TimeEntryRecorded)
	return entry, nil
}

// ApproveEntry marks a time entry approved by approverID.
func (e *Engine) ApproveEntry(ctx context.Context, entryID string, approverID int64) (*timeentries.TimeEntry, error) {
	if approverID <= 0 {
		return nil, domain.Validationf("approver id must be positive")
	}
	entry, err := e.entries.Approve(ctx, entryID, approverID, e.clock.Now())
	if err != nil {
		return nil, err
	}
	e.emitEntry(entry, events.TimeEntryApproved)
	return entry, nil
}

// ListEntries returns a technician's entries for the inclusive period.
func (e *Engine) ListEntries(ctx context.Context, technicianID int64, periodStart, periodEnd time.Time) ([]timeentries.TimeEntry, error) {
	from := periodStart.Format(timeentries.DateLayout)
	to := periodEnd.Format(timeentries.DateLayout)
	if to < from {
		return nil, domain.Validationf("period ends %s before it starts %s", to, from)
	}
	return e.entries.ListByTechnician(ctx, technicianID, from, to)
}

// ComputeMetrics folds the technician's entries for the inclusive period
// against contractedHours.
func (e *Engine) ComputeMetrics(ctx context.Context, technicianID int64, periodStart, periodEnd time.Time, contractedHours float64) (*metrics.MonthlyMetrics, error) {
	return e.aggregator.Compute(ctx, technicianID, periodStart, periodEnd, contractedHours)
}

// ComputeTeamMetrics computes metrics for every technician with entries in the period.
func (e *Engine) ComputeTeamMetrics(ctx context.Context, periodStart, periodEnd time.Time, contractedHours float64) ([]metrics.MonthlyMetrics, error) {
	return e.aggregator.ComputeTeam(ctx, periodStart, periodEnd, contractedHours)
}

// Activities returns the activity catalog.
func (e *Engine) Activities(ctx context.Context) ([]activities.ActivityType, error) {
	return e.taxonomy.List(ctx)
}

// Location is the engine's wall-clock location.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Now reads the engine clock.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

func (e *Engine) emitEntry(entry *timeentries.TimeEntry, eventType events.EventType) {
	e.emit(&events.TimeEntryData{
		Type:          eventType,
		TimeEntryID:   entry.ID,
		SessionID:     entry.SessionID,
		TechnicianID:  entry.TechnicianID,
		Date:          entry.Date,
		DurationHours: entry.DurationHours,
	})
}

func (e *Engine) emit(data events.EventData) {
	if e.events != nil {
		e.events.EmitTyped("timetracking", data)
	}
}

// ListRunning returns every running session.
func (e *Engine) ListRunning(ctx context.Context) ([]stopwatch.Session, error) {
	return e.sessions.ListRunning(ctx)
}

// ListRunningStartedBefore returns running sessions that started at or before t.
func (e *Engine) ListRunningStartedBefore(ctx context.Context, t time.Time) ([]stopwatch.Session, error) {
	return e.sessions.ListRunningStartedBefore(ctx, t)
}
