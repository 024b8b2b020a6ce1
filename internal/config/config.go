// Package config provides configuration management functionality.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Zone database for hosts without one

	"github.com/joho/godotenv"

	"github.com/aristath/techclock/internal/modules/settings"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Timezone string
	Location *time.Location

	CutoffTime         string // HH:MM in Location
	EscalationSchedule string // cron spec with seconds field

	EscalationThreshold time.Duration
	EscalationWindow    time.Duration
	ForgottenThreshold  time.Duration
	HoursPerWorkday     float64

	ActivityCatalog string // Optional YAML seed for activity types
	AlertWebhookURL string // Empty = alerts are only logged
	AlertRecipients []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TECHCLOCK_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		Port:               getEnvAsInt("PORT", 8080),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Timezone:           getEnv("TIMEZONE", "America/Argentina/Buenos_Aires"),
		CutoffTime:         getEnv("CUTOFF_TIME", "19:00"),
		EscalationSchedule: getEnv("ESCALATION_SCHEDULE", "0 */5 * * * *"),
		HoursPerWorkday:    getEnvAsFloat("HOURS_PER_WORKDAY", 8),
		ActivityCatalog:    getEnv("ACTIVITY_CATALOG", ""),
		AlertWebhookURL:    getEnv("ALERT_WEBHOOK_URL", ""),
		AlertRecipients:    settings.SplitRecipients(getEnv("ALERT_RECIPIENTS", "")),
	}

	durations := []struct {
		key    string
		def    time.Duration
		target *time.Duration
	}{
		{"ESCALATION_THRESHOLD", 2 * time.Hour, &cfg.EscalationThreshold},
		{"ESCALATION_WINDOW", 2 * time.Hour, &cfg.EscalationWindow},
		{"FORGOTTEN_THRESHOLD", 4 * time.Hour, &cfg.ForgottenThreshold},
	}
	for _, d := range durations {
		value, err := getEnvAsDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.target = value
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration and resolves Location.
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	c.Location = loc

	if _, err := time.Parse("15:04", c.CutoffTime); err != nil {
		return fmt.Errorf("invalid CUTOFF_TIME %q, expected HH:MM", c.CutoffTime)
	}
	if c.EscalationThreshold <= 0 {
		return fmt.Errorf("ESCALATION_THRESHOLD must be positive, got %s", c.EscalationThreshold)
	}
	if c.EscalationWindow <= 0 {
		return fmt.Errorf("ESCALATION_WINDOW must be positive, got %s", c.EscalationWindow)
	}
	if c.ForgottenThreshold < c.EscalationThreshold {
		return fmt.Errorf("FORGOTTEN_THRESHOLD (%s) must not be below ESCALATION_THRESHOLD (%s)",
			c.ForgottenThreshold, c.EscalationThreshold)
	}
	if c.HoursPerWorkday <= 0 {
		return fmt.Errorf("HOURS_PER_WORKDAY must be positive, got %v", c.HoursPerWorkday)
	}
	if c.Port <= 0 {
		return fmt.Errorf("PORT must be positive, got %d", c.Port)
	}
	return nil
}

// SettingOverrides exposes the environment values as settings defaults.
func (c *Config) SettingOverrides() map[string]interface{} {
	return map[string]interface{}{
		settings.KeyEscalationThresholdMinutes: c.EscalationThreshold.Minutes(),
		settings.KeyEscalationWindowMinutes:    c.EscalationWindow.Minutes(),
		settings.KeyForgottenThresholdMinutes:  c.ForgottenThreshold.Minutes(),
		settings.KeyHoursPerWorkday:            c.HoursPerWorkday,
		settings.KeyAlertRecipients:            strings.Join(c.AlertRecipients, ","),
	}
}

// UpdateFromSettings updates configuration from the settings database.
// Stored settings take precedence over environment variables.
func (c *Config) UpdateFromSettings(ctx context.Context, svc *settings.Service) error {
	esc, err := svc.Escalation(ctx)
	if err != nil {
		return fmt.Errorf("failed to read escalation settings: %w", err)
	}
	hours, err := svc.HoursPerWorkday(ctx)
	if err != nil {
		return fmt.Errorf("failed to read hours per workday: %w", err)
	}

	c.EscalationThreshold = esc.Threshold
	c.EscalationWindow = esc.Window
	c.ForgottenThreshold = esc.ForgottenThreshold
	c.AlertRecipients = esc.Recipients
	c.HoursPerWorkday = hours
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
