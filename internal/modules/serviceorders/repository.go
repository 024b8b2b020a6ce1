package serviceorders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Repository is the SQLite-backed service order store.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new service order repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "service_orders").Logger(),
	}
}

// GetOrder returns the order, or nil if it does not exist.
func (r *Repository) GetOrder(ctx context.Context, id int64) (*ServiceOrder, error) {
	var (
		o         ServiceOrder
		ref       sql.NullString
		status    string
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, reference_code, status, updated_at FROM service_orders WHERE id = ?
	`, id).Scan(&o.ID, &ref, &status, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service order %d: %w", id, err)
	}

	o.ReferenceCode = ref.String
	o.Status = Status(status)
	o.UpdatedAt = time.Unix(updatedAt, 0)
	return &o, nil
}

// FindByReference returns the IDs of orders with the given reference code
// whose status is in statuses.
func (r *Repository) FindByReference(ctx context.Context, referenceCode string, statuses ...Status) ([]int64, error) {
	query := `SELECT id FROM service_orders WHERE reference_code = ?`
	args := []interface{}{referenceCode}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(",?", len(statuses)-1) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find service orders by reference %q: %w", referenceCode, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan service order id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AdvanceStatus moves the order to next only if its current status is one of
// from, and appends an audit row in the same transaction. It reports whether
// the order changed. The conditional UPDATE makes concurrent syncs safe.
func (r *Repository) AdvanceStatus(ctx context.Context, id int64, next Status, from []Status, reason, timeEntryID string, at time.Time) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("advance status: no source statuses given")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// One conditional UPDATE per source status: the matching one tells us the
	// previous status without a read before the write.
	var previous Status
	for _, s := range from {
		res, err := tx.ExecContext(ctx, `
			UPDATE service_orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?
		`, string(next), at.Unix(), id, string(s))
		if err != nil {
			return false, fmt.Errorf("failed to advance service order %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n > 0 {
			previous = s
			break
		}
	}
	if previous == "" {
		return false, nil
	}

	return true, r.commitAudit(ctx, tx, id, previous, next, reason, timeEntryID, at)
}

func (r *Repository) commitAudit(ctx context.Context, tx *sql.Tx, id int64, previous Status, next Status, reason, timeEntryID string, at time.Time) error {
	var entryID interface{}
	if timeEntryID != "" {
		entryID = timeEntryID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO service_order_status_log (order_id, previous_status, new_status, reason, time_entry_id, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, string(previous), string(next), reason, entryID, at.Unix())
	if err != nil {
		return fmt.Errorf("failed to write status log for order %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status change for order %d: %w", id, err)
	}
	return nil
}

// SetStatus unconditionally sets the order status. The synchronizer uses
// AdvanceStatus; SetStatus exists for the collaborator contract.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid service order status %q", status)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE service_orders SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to set service order %d status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("service order %d not found", id)
	}
	return nil
}

// History returns the audit log for an order, oldest first.
func (r *Repository) History(ctx context.Context, orderID int64) ([]StatusChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, previous_status, new_status, reason, time_entry_id, changed_at
		FROM service_order_status_log
		WHERE order_id = ?
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status log: %w", err)
	}
	defer rows.Close()

	var changes []StatusChange
	for rows.Next() {
		var (
			c             StatusChange
			prev, next    string
			entryID       sql.NullString
			changedAtUnix int64
		)
		if err := rows.Scan(&c.ID, &c.OrderID, &prev, &next, &c.Reason, &entryID, &changedAtUnix); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		c.PreviousStatus = Status(prev)
		c.NewStatus = Status(next)
		c.TimeEntryID = entryID.String
		c.ChangedAt = time.Unix(changedAtUnix, 0)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}
