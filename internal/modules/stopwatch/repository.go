package stopwatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/database"
	"github.com/aristath/techclock/internal/domain"
)

// Repository persists sessions in the timetracking database.
//
// The one-running-session invariant is held by the partial unique index
// ux_stopwatch_sessions_one_active: Create is a single INSERT, so the check
// and the write are one atomic statement.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new session repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "stopwatch_sessions").Logger(),
	}
}

const sessionColumns = `id, technician_id, activity_type_id, service_order_id, description,
	start_time, end_time, active, closed_by`

// Create inserts a RUNNING session. A second running session for the same
// technician fails with a Conflict error.
func (r *Repository) Create(ctx context.Context, s Session) error {
	if s.State() != StateRunning {
		return domain.Statef("only running sessions can be created, got %s", s.State())
	}

	now := time.Now().Unix()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stopwatch_sessions
			(id, technician_id, activity_type_id, service_order_id, description, start_time, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, s.ID, s.TechnicianID, s.ActivityTypeID, nullableInt64(s.ServiceOrderID), s.Description,
		s.StartTime.Unix(), now, now)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.Conflictf("technician %d already has a running session", s.TechnicianID)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID returns the session, or nil if it does not exist.
func (r *Repository) GetByID(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM stopwatch_sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return s, nil
}

// GetActiveByTechnician returns the technician's running session, or nil.
func (r *Repository) GetActiveByTechnician(ctx context.Context, technicianID int64) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM stopwatch_sessions WHERE technician_id = ? AND active = 1
	`, technicianID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get running session for technician %d: %w", technicianID, err)
	}
	return s, nil
}

// ListRunning returns every running session, oldest first.
func (r *Repository) ListRunning(ctx context.Context) ([]Session, error) {
	return r.query(ctx, `
		SELECT `+sessionColumns+` FROM stopwatch_sessions WHERE active = 1 ORDER BY start_time, id
	`)
}

// ListRunningStartedBefore returns running sessions with start_time <= t.
func (r *Repository) ListRunningStartedBefore(ctx context.Context, t time.Time) ([]Session, error) {
	return r.query(ctx, `
		SELECT `+sessionColumns+` FROM stopwatch_sessions
		WHERE active = 1 AND start_time <= ?
		ORDER BY start_time, id
	`, t.Unix())
}

// ListByTechnician returns a technician's sessions that started in [from, to).
func (r *Repository) ListByTechnician(ctx context.Context, technicianID int64, from, to time.Time) ([]Session, error) {
	return r.query(ctx, `
		SELECT `+sessionColumns+` FROM stopwatch_sessions
		WHERE technician_id = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time, id
	`, technicianID, from.Unix(), to.Unix())
}

// CloseTx persists a stopped session inside tx. It only updates a row that is
// still running and reports whether it did; false means another caller closed
// the session first.
func (r *Repository) CloseTx(ctx context.Context, tx *sql.Tx, s Session) (bool, error) {
	if s.State() != StateStopped || s.EndTime == nil {
		return false, domain.Statef("session %s is not stopped", s.ID)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE stopwatch_sessions
		SET active = 0, end_time = ?, closed_by = ?, updated_at = ?
		WHERE id = ? AND active = 1
	`, s.EndTime.Unix(), string(s.ClosedBy), time.Now().Unix(), s.ID)
	if err != nil {
		return false, fmt.Errorf("failed to close session %s: %w", s.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		s         Session
		orderID   sql.NullInt64
		startUnix int64
		endUnix   sql.NullInt64
		active    int
		closedBy  sql.NullString
	)
	if err := row.Scan(&s.ID, &s.TechnicianID, &s.ActivityTypeID, &orderID, &s.Description,
		&startUnix, &endUnix, &active, &closedBy); err != nil {
		return nil, err
	}

	if orderID.Valid {
		id := orderID.Int64
		s.ServiceOrderID = &id
	}
	s.StartTime = time.Unix(startUnix, 0)
	if endUnix.Valid {
		end := time.Unix(endUnix.Int64, 0)
		s.EndTime = &end
	}
	s.Active = active == 1
	s.ClosedBy = CloseReason(closedBy.String)
	return &s, nil
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
