// Package stopwatch holds the per-technician work timer and its state machine.
//
// A technician is in one of three states: NONE (no running session, not a
// row), RUNNING, or STOPPED (terminal). Transitions are plain functions that
// enforce their own preconditions and return a new value; persistence and the
// one-running-session-per-technician guarantee live in Repository.
package stopwatch

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/techclock/internal/domain"
)

// State of a session.
type State string

const (
	StateNone    State = "NONE"
	StateRunning State = "RUNNING"
	StateStopped State = "STOPPED"
)

// CloseReason records who closed a session.
type CloseReason string

const (
	ClosedManual CloseReason = "MANUAL"
	ClosedCutoff CloseReason = "CUTOFF"
)

// Session is one started timer. Sessions are never deleted.
type Session struct {
	ID             string      `json:"id"`
	TechnicianID   int64       `json:"technician_id"`
	ActivityTypeID int64       `json:"activity_type_id"`
	ServiceOrderID *int64      `json:"service_order_id,omitempty"`
	Description    string      `json:"description"`
	StartTime      time.Time   `json:"start_time"`
	EndTime        *time.Time  `json:"end_time,omitempty"`
	Active         bool        `json:"active"`
	ClosedBy       CloseReason `json:"closed_by,omitempty"`
}

// State derives the state from the persisted fields. A nil session is NONE.
func (s *Session) State() State {
	switch {
	case s == nil:
		return StateNone
	case s.Active:
		return StateRunning
	default:
		return StateStopped
	}
}

// Elapsed returns how long the session has been running at now, or its
// final length once stopped.
func (s *Session) Elapsed(now time.Time) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return now.Sub(s.StartTime)
}

// StartParams are the inputs to Start.
type StartParams struct {
	TechnicianID   int64
	ActivityTypeID int64
	ServiceOrderID *int64
	Description    string
}

// Start is the NONE -> RUNNING transition. It builds the session value; the
// caller persists it with Repository.Create, which is where a second running
// session for the same technician is rejected.
func Start(p StartParams, now time.Time) (Session, error) {
	if p.TechnicianID <= 0 {
		return Session{}, domain.Validationf("technician id must be positive")
	}
	if p.ActivityTypeID <= 0 {
		return Session{}, domain.Validationf("activity type id must be positive")
	}

	return Session{
		ID:             uuid.NewString(),
		TechnicianID:   p.TechnicianID,
		ActivityTypeID: p.ActivityTypeID,
		ServiceOrderID: p.ServiceOrderID,
		Description:    strings.TrimSpace(p.Description),
		StartTime:      now,
		Active:         true,
	}, nil
}

// Stop is the RUNNING -> STOPPED transition with endTime = at.
func Stop(s Session, at time.Time) (Session, error) {
	return closeSession(s, at, ClosedManual)
}

// AutoClose is the watchdog's RUNNING -> STOPPED transition. The end time is
// forced to the cutoff when the sweep runs after it (see CutoffEnd).
func AutoClose(s Session, now, cutoff time.Time) (Session, error) {
	return closeSession(s, CutoffEnd(s.StartTime, now, cutoff), ClosedCutoff)
}

// CutoffEnd picks the end time for an auto-closed session. cutoff is the most
// recent cutoff instant; earlier daily occurrences are found by stepping back
// one calendar day in cutoff's location. The session ends at the first cutoff
// after it started, so a sweep catching up after missed days does not bill the
// days in between. It ends now when the sweep runs at or before the cutoff, or
// when it started after the cutoff (it cannot end before it began).
func CutoffEnd(start, now, cutoff time.Time) time.Time {
	if !now.After(cutoff) || !start.Before(cutoff) {
		return now
	}
	for {
		prev := cutoff.AddDate(0, 0, -1)
		if !start.Before(prev) {
			return cutoff
		}
		cutoff = prev
	}
}

func closeSession(s Session, at time.Time, reason CloseReason) (Session, error) {
	if s.State() != StateRunning {
		return Session{}, domain.Statef("session %s is %s, not RUNNING", s.ID, s.State())
	}
	if at.Before(s.StartTime) {
		return Session{}, domain.Validationf("session %s cannot end at %s before it started at %s",
			s.ID, at.Format(time.RFC3339), s.StartTime.Format(time.RFC3339))
	}

	end := at
	s.EndTime = &end
	s.Active = false
	s.ClosedBy = reason
	return s, nil
}
