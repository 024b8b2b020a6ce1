// Package serviceorders is the engine's view of workshop service orders: a
// read/status-write store and the synchronizer that advances an order when
// income-generating time is recorded against it.
package serviceorders

import "time"

// Status is a service order lifecycle state.
type Status string

const (
	StatusScheduled     Status = "SCHEDULED"
	StatusAwaitingParts Status = "AWAITING_PARTS"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusCompleted     Status = "COMPLETED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusAwaitingParts, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ServiceOrder is owned by the workshop module. The engine never creates or
// deletes orders.
type ServiceOrder struct {
	ID            int64     `json:"id"`
	ReferenceCode string    `json:"reference_code,omitempty"`
	Status        Status    `json:"status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StatusChange is one audit-log row written by the synchronizer.
type StatusChange struct {
	ID             int64     `json:"id"`
	OrderID        int64     `json:"order_id"`
	PreviousStatus Status    `json:"previous_status"`
	NewStatus      Status    `json:"new_status"`
	Reason         string    `json:"reason"`
	TimeEntryID    string    `json:"time_entry_id,omitempty"`
	ChangedAt      time.Time `json:"changed_at"`
}
