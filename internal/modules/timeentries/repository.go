package timeentries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/domain"
)

// Repository persists time entries.
type Repository struct {
	db  *sql.DB
	loc *time.Location
	log zerolog.Logger
}

// NewRepository creates a new time entry repository. Times read back are
// expressed in loc.
func NewRepository(db *sql.DB, loc *time.Location, log zerolog.Logger) *Repository {
	if loc == nil {
		loc = time.Local
	}
	return &Repository{
		db:  db,
		loc: loc,
		log: log.With().Str("repo", "time_entries").Logger(),
	}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const entryColumns = `id, session_id, technician_id, entry_date, start_time, end_time, activity_type_id,
	service_order_id, description, source, approved, approved_by, approved_at, created_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CreateTx inserts e inside tx unless it overlaps other recorded time of the
// technician (see createIfNoOverlap). session_id is UNIQUE, so a session can
// only ever produce one entry. Reports whether the row was written.
func (r *Repository) CreateTx(ctx context.Context, tx *sql.Tx, e *TimeEntry) (bool, error) {
	return r.createIfNoOverlap(ctx, tx, e)
}

// CreateIfNoOverlap is CreateTx outside a transaction.
func (r *Repository) CreateIfNoOverlap(ctx context.Context, e *TimeEntry) (bool, error) {
	return r.createIfNoOverlap(ctx, r.db, e)
}

// createIfNoOverlap inserts e unless the technician already has an entry whose
// absolute interval intersects [e.StartTime, e.EndTime), or a running session
// that started before e.EndTime. Intervals are compared as instants, so an
// entry wrapping past midnight is checked against the next day's entries too.
// The check and the insert are one statement.
func (r *Repository) createIfNoOverlap(ctx context.Context, ex execer, e *TimeEntry) (bool, error) {
	res, err := ex.ExecContext(ctx, `
		INSERT INTO time_entries
			(id, session_id, technician_id, entry_date, start_time, end_time, activity_type_id,
			 service_order_id, description, source, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM time_entries
			WHERE technician_id = ? AND start_time < ? AND end_time > ?
		)
		AND NOT EXISTS (
			SELECT 1 FROM stopwatch_sessions
			WHERE technician_id = ? AND active = 1 AND start_time < ?
		)
	`, e.ID, nullableString(e.SessionID), e.TechnicianID, e.Date, e.StartTime.Unix(), e.EndTime.Unix(),
		e.ActivityTypeID, nullableInt64(e.ServiceOrderID), e.Description, string(e.Source), e.CreatedAt.Unix(),
		e.TechnicianID, e.EndTime.Unix(), e.StartTime.Unix(),
		e.TechnicianID, e.EndTime.Unix())
	if err != nil {
		return false, fmt.Errorf("failed to insert time entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// GetByID returns the entry, or nil if it does not exist.
func (r *Repository) GetByID(ctx context.Context, id string) (*TimeEntry, error) {
	return r.getOne(ctx, r.db, `SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id)
}

// GetBySessionID returns the entry produced by a session, or nil.
func (r *Repository) GetBySessionID(ctx context.Context, sessionID string) (*TimeEntry, error) {
	return r.getBySessionID(ctx, r.db, sessionID)
}

func (r *Repository) getBySessionID(ctx context.Context, q querier, sessionID string) (*TimeEntry, error) {
	return r.getOne(ctx, q, `SELECT `+entryColumns+` FROM time_entries WHERE session_id = ?`, sessionID)
}

func (r *Repository) getOne(ctx context.Context, q querier, query string, arg interface{}) (*TimeEntry, error) {
	e, err := r.scan(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get time entry: %w", err)
	}
	return e, nil
}

// ListByTechnician returns a technician's entries with from <= date <= to
// (YYYY-MM-DD, inclusive), ordered by start.
func (r *Repository) ListByTechnician(ctx context.Context, technicianID int64, from, to string) ([]TimeEntry, error) {
	return r.query(ctx, `
		SELECT `+entryColumns+` FROM time_entries
		WHERE technician_id = ? AND entry_date >= ? AND entry_date <= ?
		ORDER BY start_time, id
	`, technicianID, from, to)
}

// ListByPeriod returns every technician's entries with from <= date <= to.
func (r *Repository) ListByPeriod(ctx context.Context, from, to string) ([]TimeEntry, error) {
	return r.query(ctx, `
		SELECT `+entryColumns+` FROM time_entries
		WHERE entry_date >= ? AND entry_date <= ?
		ORDER BY technician_id, start_time, id
	`, from, to)
}

// Approve marks an entry approved once. Approving an approved entry is a
// State error; an unknown ID is NotFound.
func (r *Repository) Approve(ctx context.Context, id string, approverID int64, at time.Time) (*TimeEntry, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE time_entries SET approved = 1, approved_by = ?, approved_at = ?
		WHERE id = ? AND approved = 0
	`, approverID, at.Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to approve time entry %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	e, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, domain.NotFoundf("time entry %s", id)
	}
	if n == 0 {
		return nil, domain.Statef("time entry %s is already approved", id)
	}
	return e, nil
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	defer rows.Close()

	var entries []TimeEntry
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating time entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) scan(row rowScanner) (*TimeEntry, error) {
	var (
		e                   TimeEntry
		sessionID           sql.NullString
		startUnix, endUnix  int64
		orderID, approvedBy sql.NullInt64
		source              string
		approved            int
		approvedAt          sql.NullInt64
		createdAt           int64
	)
	if err := row.Scan(&e.ID, &sessionID, &e.TechnicianID, &e.Date, &startUnix, &endUnix, &e.ActivityTypeID,
		&orderID, &e.Description, &source, &approved, &approvedBy, &approvedAt, &createdAt); err != nil {
		return nil, err
	}

	e.SessionID = sessionID.String
	e.StartTime = time.Unix(startUnix, 0).In(r.loc)
	e.EndTime = time.Unix(endUnix, 0).In(r.loc)
	if orderID.Valid {
		id := orderID.Int64
		e.ServiceOrderID = &id
	}
	e.Source = Source(source)
	e.Approved = approved == 1
	if approvedBy.Valid {
		id := approvedBy.Int64
		e.ApprovedBy = &id
	}
	if approvedAt.Valid {
		at := time.Unix(approvedAt.Int64, 0).In(r.loc)
		e.ApprovedAt = &at
	}
	e.CreatedAt = time.Unix(createdAt, 0).In(r.loc)
	e.derive()
	return &e, nil
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
