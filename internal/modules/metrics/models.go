// Package metrics folds time entries into per-technician productivity,
// efficiency and performance figures.
package metrics

// ActivityHours is the time logged against one activity type in a period.
type ActivityHours struct {
	ActivityTypeID int64   `json:"activity_type_id" msgpack:"activity_type_id"`
	Name           string  `json:"name" msgpack:"name"`
	Hours          float64 `json:"hours" msgpack:"hours"`
}

// MonthlyMetrics is a projection recomputed from time entries; it is never a
// source of truth. Percentages are 0-100 based and may exceed 100.
type MonthlyMetrics struct {
	TechnicianID    int64           `json:"technician_id" msgpack:"technician_id"`
	PeriodStart     string          `json:"period_start" msgpack:"period_start"`
	PeriodEnd       string          `json:"period_end" msgpack:"period_end"`
	Month           int             `json:"month" msgpack:"month"`
	Year            int             `json:"year" msgpack:"year"`
	ContractedHours float64         `json:"contracted_hours" msgpack:"contracted_hours"`
	TotalHours      float64         `json:"total_hours" msgpack:"total_hours"`
	AvailableHours  float64         `json:"available_hours" msgpack:"available_hours"`
	IncomeHours     float64         `json:"income_hours" msgpack:"income_hours"`
	BillableHours   float64         `json:"billable_hours" msgpack:"billable_hours"`
	Productivity    float64         `json:"productivity" msgpack:"productivity"`
	Efficiency      float64         `json:"efficiency" msgpack:"efficiency"`
	Performance     float64         `json:"performance" msgpack:"performance"`
	EntryCount      int             `json:"entry_count" msgpack:"entry_count"`
	ByActivity      []ActivityHours `json:"by_activity" msgpack:"by_activity"`
}
