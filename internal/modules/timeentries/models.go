// Package timeentries records validated, immutable time entries derived from
// closed stopwatch sessions or entered manually.
package timeentries

import (
	"time"
)

// DateLayout is the layout of TimeEntry.Date.
const DateLayout = "2006-01-02"

// Source says where an entry came from.
type Source string

const (
	SourceSession Source = "SESSION"
	SourceManual  Source = "MANUAL"
)

// TimeEntry is the durable record of worked time. StartTime and EndTime are
// in the engine's configured location; Date is StartTime's calendar day there.
type TimeEntry struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"session_id,omitempty"`
	TechnicianID    int64      `json:"technician_id"`
	Date            string     `json:"date"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	ActivityTypeID  int64      `json:"activity_type_id"`
	ServiceOrderID  *int64     `json:"service_order_id,omitempty"`
	Description     string     `json:"description"`
	Source          Source     `json:"source"`
	DurationHours   float64    `json:"duration_hours"`
	CrossesMidnight bool       `json:"crosses_midnight"`
	Approved        bool       `json:"approved"`
	ApprovedBy      *int64     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ClockDuration returns the wall-clock distance from start to end, comparing
// times of day only. When end's time of day is earlier than start's, the
// interval is taken to cross midnight and 24h is added; wrapped reports that.
// It is meant for HH:MM input, where no calendar day is given for the end.
//
// The correction is applied whether or not the interval really spans two
// days, so an end time mistyped earlier than the start is indistinguishable
// from an overnight job. Callers that accept free-form input should surface
// wrapped to a human.
func ClockDuration(start, end time.Time) (d time.Duration, wrapped bool) {
	d = secondsOfDay(end) - secondsOfDay(start)
	if d < 0 {
		d += 24 * time.Hour
		wrapped = true
	}
	return d, wrapped
}

func secondsOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

// derive fills the computed fields from the absolute interval. An entry
// crosses midnight when it ends on a later calendar day than it started,
// in StartTime's location.
func (e *TimeEntry) derive() {
	e.DurationHours = e.EndTime.Sub(e.StartTime).Hours()
	end := e.EndTime.In(e.StartTime.Location())
	sy, sm, sd := e.StartTime.Date()
	ey, em, ed := end.Date()
	e.CrossesMidnight = sy != ey || sm != em || sd != ed
}
