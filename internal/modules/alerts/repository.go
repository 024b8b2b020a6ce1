package alerts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository persists alert records.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new alert repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "alert_records").Logger(),
	}
}

// CreateIfNoneSince inserts a unless the session already has an alert created
// after since. The existence check and the insert are a single statement, so
// overlapping sweeps cannot both create one. Reports whether a was written.
func (r *Repository) CreateIfNoneSince(ctx context.Context, a *Alert, since time.Time) (bool, error) {
	recipients, err := json.Marshal(a.Recipients)
	if err != nil {
		return false, fmt.Errorf("failed to marshal recipients: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO alert_records (id, session_id, kind, recipients, subject, message, status, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM alert_records WHERE session_id = ? AND created_at > ?
		)
	`, a.ID, a.SessionID, string(a.Kind), string(recipients), a.Subject, a.Message, string(a.Status),
		a.CreatedAt.Unix(), a.SessionID, since.Unix())
	if err != nil {
		return false, fmt.Errorf("failed to create alert for session %s: %w", a.SessionID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// HasAlertSince reports whether the session has an alert created after since.
func (r *Repository) HasAlertSince(ctx context.Context, sessionID string, since time.Time) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM alert_records WHERE session_id = ? AND created_at > ?)
	`, sessionID, since.Unix()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check alerts for session %s: %w", sessionID, err)
	}
	return exists == 1, nil
}

// MarkDispatched records the delivery outcome.
func (r *Repository) MarkDispatched(ctx context.Context, id string, status Status, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE alert_records SET status = ?, dispatched_at = ? WHERE id = ?
	`, string(status), at.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update alert %s: %w", id, err)
	}
	return nil
}

// ListRecent returns the newest alerts first. The technician is joined in
// from the session.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.query(ctx, `
		SELECT a.id, a.session_id, s.technician_id, a.kind, a.recipients, a.subject, a.message,
			a.status, a.created_at, a.dispatched_at
		FROM alert_records a
		JOIN stopwatch_sessions s ON s.id = a.session_id
		ORDER BY a.created_at DESC, a.id
		LIMIT ?
	`, limit)
}

// ListBySession returns a session's alerts, oldest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]Alert, error) {
	return r.query(ctx, `
		SELECT a.id, a.session_id, s.technician_id, a.kind, a.recipients, a.subject, a.message,
			a.status, a.created_at, a.dispatched_at
		FROM alert_records a
		JOIN stopwatch_sessions s ON s.id = a.session_id
		WHERE a.session_id = ?
		ORDER BY a.created_at, a.id
	`, sessionID)
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var result []Alert
	for rows.Next() {
		var (
			a            Alert
			kind, status string
			recipients   string
			createdAt    int64
			dispatchedAt sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.TechnicianID, &kind, &recipients, &a.Subject, &a.Message,
			&status, &createdAt, &dispatchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		if err := json.Unmarshal([]byte(recipients), &a.Recipients); err != nil {
			r.log.Warn().Err(err).Str("alert_id", a.ID).Msg("Failed to unmarshal alert recipients")
		}
		a.Kind = Kind(kind)
		a.Status = Status(status)
		a.CreatedAt = time.Unix(createdAt, 0)
		if dispatchedAt.Valid {
			at := time.Unix(dispatchedAt.Int64, 0)
			a.DispatchedAt = &at
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return result, nil
}
