package activities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Repository reads and seeds the activity_types table.
// The engine never mutates the catalog at runtime; Upsert exists for the
// catalog seed loaded at startup.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new activity type repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "activities").Logger(),
	}
}

const activityColumns = `id, name, description, availability, generates_income, billing_category`

// GetByID returns the activity type, or nil if it does not exist.
func (r *Repository) GetByID(ctx context.Context, id int64) (*ActivityType, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activity_types WHERE id = ?`, id)

	t, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity type %d: %w", id, err)
	}
	return t, nil
}

// List returns the full catalog ordered the way the technician picker shows it.
func (r *Repository) List(ctx context.Context) ([]ActivityType, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+activityColumns+`
		FROM activity_types
		ORDER BY availability, generates_income, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity types: %w", err)
	}
	defer rows.Close()

	var result []ActivityType
	for rows.Next() {
		t, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity type: %w", err)
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity types: %w", err)
	}
	return result, nil
}

// Upsert inserts or replaces a catalog entry by ID.
func (r *Repository) Upsert(ctx context.Context, t ActivityType) error {
	if err := t.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_types (id, name, description, availability, generates_income, billing_category)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			availability = excluded.availability,
			generates_income = excluded.generates_income,
			billing_category = excluded.billing_category
	`, t.ID, t.Name, t.Description, t.Availability, t.GeneratesIncome, t.BillingCategory)
	if err != nil {
		return fmt.Errorf("failed to upsert activity type %q: %w", t.Name, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivity(row rowScanner) (*ActivityType, error) {
	var (
		id                            int64
		name, description             string
		availability, income, billing string
	)
	if err := row.Scan(&id, &name, &description, &availability, &income, &billing); err != nil {
		return nil, err
	}

	a, err := ParseAvailability(availability)
	if err != nil {
		return nil, err
	}
	g, err := ParseIncomeGeneration(income)
	if err != nil {
		return nil, err
	}
	b, err := ParseBillingCategory(billing)
	if err != nil {
		return nil, err
	}

	t := NewActivityType(id, name, description, a, g, b)
	return &t, nil
}
