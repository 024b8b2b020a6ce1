// Package alerts records and dispatches escalation alerts for long-running
// stopwatch sessions.
package alerts

import "time"

// Kind distinguishes a long session from one that was probably left running.
type Kind string

const (
	KindActive    Kind = "ACTIVE"
	KindForgotten Kind = "FORGOTTEN"
)

// Status is the delivery outcome of an alert.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Alert is one escalation event. At most one alert per session is created
// within an escalation window, whatever its kind.
type Alert struct {
	ID           string     `json:"id"`
	SessionID    string     `json:"session_id"`
	TechnicianID int64      `json:"technician_id"`
	Kind         Kind       `json:"kind"`
	Recipients   []string   `json:"recipients"`
	Subject      string     `json:"subject"`
	Message      string     `json:"message"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
}
