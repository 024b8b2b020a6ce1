package testing

import (
	"testing"
	"time"

	"github.com/aristath/techclock/internal/database"
)

// Activity type IDs seeded by SeedActivityTypes. Names mirror a typical
// workshop catalog; the engine only ever looks at the three axes.
const (
	ActivityRepair       int64 = 1 // AVAILABLE, INCOME, BILLABLE
	ActivityWarranty     int64 = 2 // AVAILABLE, INCOME, NON_BILLABLE
	ActivityTraining     int64 = 3 // AVAILABLE, NO_INCOME, NON_BILLABLE
	ActivityBreak        int64 = 4 // UNAVAILABLE, NO_INCOME, NON_BILLABLE
	ActivityShopCleaning int64 = 5 // AVAILABLE, NO_INCOME, NON_BILLABLE
)

// SeedActivityTypes inserts the standard activity catalog.
func SeedActivityTypes(t *testing.T, db *database.DB) {
	t.Helper()

	rows := []struct {
		id                                  int64
		name, availability, income, billing string
	}{
		{ActivityRepair, "Field repair", "AVAILABLE", "INCOME", "BILLABLE"},
		{ActivityWarranty, "Warranty work", "AVAILABLE", "INCOME", "NON_BILLABLE"},
		{ActivityTraining, "Training", "AVAILABLE", "NO_INCOME", "NON_BILLABLE"},
		{ActivityBreak, "Lunch break", "UNAVAILABLE", "NO_INCOME", "NON_BILLABLE"},
		{ActivityShopCleaning, "Shop cleaning", "AVAILABLE", "NO_INCOME", "NON_BILLABLE"},
	}

	for _, r := range rows {
		_, err := db.Conn().Exec(`
			INSERT INTO activity_types (id, name, description, availability, generates_income, billing_category)
			VALUES (?, ?, '', ?, ?, ?)
		`, r.id, r.name, r.availability, r.income, r.billing)
		if err != nil {
			t.Fatalf("Failed to seed activity type %s: %v", r.name, err)
		}
	}
}

// SeedServiceOrder inserts a service order with the given status and optional reference code.
func SeedServiceOrder(t *testing.T, db *database.DB, id int64, referenceCode string, status string) {
	t.Helper()

	var ref interface{}
	if referenceCode != "" {
		ref = referenceCode
	}

	_, err := db.Conn().Exec(`
		INSERT INTO service_orders (id, reference_code, status, updated_at)
		VALUES (?, ?, ?, ?)
	`, id, ref, status, time.Now().Unix())
	if err != nil {
		t.Fatalf("Failed to seed service order %d: %v", id, err)
	}
}

// ServiceOrderStatus reads the current status of a seeded order.
func ServiceOrderStatus(t *testing.T, db *database.DB, id int64) string {
	t.Helper()

	var status string
	if err := db.Conn().QueryRow(`SELECT status FROM service_orders WHERE id = ?`, id).Scan(&status); err != nil {
		t.Fatalf("Failed to read service order %d: %v", id, err)
	}
	return status
}

// CountRows returns the number of rows in table matching where (may be empty).
func CountRows(t *testing.T, db *database.DB, table, where string, args ...interface{}) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}

	var n int
	if err := db.Conn().QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}
