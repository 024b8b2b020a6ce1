package settings

// Setting keys that can be changed at runtime. Values override the
// environment configuration once set.
const (
	KeyEscalationThresholdMinutes = "escalation_threshold_minutes"
	KeyEscalationWindowMinutes    = "escalation_window_minutes"
	KeyForgottenThresholdMinutes  = "forgotten_threshold_minutes"
	KeyHoursPerWorkday            = "hours_per_workday"
	KeyAlertRecipients            = "alert_recipients"
)

// SettingDefaults holds the default for every runtime setting
var SettingDefaults = map[string]interface{}{
	KeyEscalationThresholdMinutes: 120.0, // Alert on sessions running at least this long
	KeyEscalationWindowMinutes:    120.0, // Minimum spacing between two alerts for one session
	KeyForgottenThresholdMinutes:  240.0, // Sessions past this are reported as FORGOTTEN
	KeyHoursPerWorkday:            8.0,   // Contracted hours per weekday when no baseline is given
	KeyAlertRecipients:            "",    // Comma separated alert recipients
}

// SettingDescriptions documents each runtime setting
var SettingDescriptions = map[string]string{
	KeyEscalationThresholdMinutes: "Minutes a session must run before the escalation sweep alerts on it",
	KeyEscalationWindowMinutes:    "Minutes that must pass before the same session can be alerted again",
	KeyForgottenThresholdMinutes:  "Minutes after which a running session is reported as probably forgotten",
	KeyHoursPerWorkday:            "Contracted hours per weekday used for the default metrics baseline",
	KeyAlertRecipients:            "Comma separated list of alert recipients",
}

// Setting is one key with its effective value.
type Setting struct {
	Key         string      `json:"key"`
	Value       interface{} `json:"value"`
	Description string      `json:"description"`
	Overridden  bool        `json:"overridden"`
}

// SettingUpdate is the request body of PUT /api/settings/{key}
type SettingUpdate struct {
	Value interface{} `json:"value"`
}
