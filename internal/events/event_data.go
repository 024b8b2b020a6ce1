package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// SessionData contains data for session lifecycle events
type SessionData struct {
	Type           EventType `json:"-"`
	SessionID      string    `json:"session_id"`
	TechnicianID   int64     `json:"technician_id"`
	ActivityTypeID int64     `json:"activity_type_id"`
	ServiceOrderID *int64    `json:"service_order_id,omitempty"`
}

// EventType returns the lifecycle event this data was emitted for
func (d *SessionData) EventType() EventType {
	if d.Type == "" {
		return SessionStarted
	}
	return d.Type
}

// TimeEntryData contains data for TimeEntryRecorded and TimeEntryApproved events
type TimeEntryData struct {
	Type          EventType `json:"-"`
	TimeEntryID   string    `json:"time_entry_id"`
	SessionID     string    `json:"session_id,omitempty"`
	TechnicianID  int64     `json:"technician_id"`
	Date          string    `json:"date"`
	DurationHours float64   `json:"duration_hours"`
}

// EventType returns the event type for TimeEntryData
func (d *TimeEntryData) EventType() EventType {
	if d.Type == "" {
		return TimeEntryRecorded
	}
	return d.Type
}

// AlertRaisedData contains data for AlertRaised events
type AlertRaisedData struct {
	AlertID      string `json:"alert_id"`
	SessionID    string `json:"session_id"`
	TechnicianID int64  `json:"technician_id"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
}

// EventType returns the event type for AlertRaisedData
func (d *AlertRaisedData) EventType() EventType {
	return AlertRaised
}

// SweepCompletedData contains data for SweepCompleted events
type SweepCompletedData struct {
	Sweep     string `json:"sweep"`
	Processed int    `json:"processed"`
	Failures  int    `json:"failures"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// EventType returns the event type for SweepCompletedData
func (d *SweepCompletedData) EventType() EventType {
	return SweepCompleted
}

// CatalogSeededData contains data for ActivityCatalogSeeded events
type CatalogSeededData struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// EventType returns the event type for CatalogSeededData
func (d *CatalogSeededData) EventType() EventType {
	return ActivityCatalogSeeded
}

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}
