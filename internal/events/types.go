// Package events provides in-process event publishing for the time-tracking engine.
package events

// EventType identifies an event.
type EventType string

const (
	// SessionStarted - a technician started a stopwatch
	SessionStarted EventType = "SESSION_STARTED"
	// SessionStopped - a technician stopped a stopwatch
	SessionStopped EventType = "SESSION_STOPPED"
	// SessionAutoClosed - the cutoff sweep closed a session
	SessionAutoClosed EventType = "SESSION_AUTO_CLOSED"
	// TimeEntryRecorded - a time entry was persisted (session or manual)
	TimeEntryRecorded EventType = "TIME_ENTRY_RECORDED"
	// TimeEntryApproved - a supervisor approved a time entry
	TimeEntryApproved EventType = "TIME_ENTRY_APPROVED"
	// AlertRaised - the escalation sweep created an alert
	AlertRaised EventType = "ALERT_RAISED"
	// SweepCompleted - a watchdog sweep finished
	SweepCompleted EventType = "SWEEP_COMPLETED"
	// ActivityCatalogSeeded - activity types were (re)loaded from the catalog file
	ActivityCatalogSeeded EventType = "ACTIVITY_CATALOG_SEEDED"
	// SettingsChanged - a runtime setting was updated
	SettingsChanged EventType = "SETTINGS_CHANGED"
	// ErrorOccurred - an error worth surfacing outside the log
	ErrorOccurred EventType = "ERROR_OCCURRED"
)
