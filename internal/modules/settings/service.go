package settings

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/techclock/internal/domain"
	"github.com/aristath/techclock/internal/events"
	"github.com/rs/zerolog"
)

// Escalation is the effective configuration of the escalation sweep.
type Escalation struct {
	Threshold          time.Duration
	Window             time.Duration
	ForgottenThreshold time.Duration
	Recipients         []string
}

// Service exposes runtime settings with validation. Stored values override
// the defaults the service was built with.
type Service struct {
	repo         *Repository
	defaults     map[string]interface{}
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a settings service. overrides replace entries of
// SettingDefaults, typically with values read from the environment.
func NewService(repo *Repository, overrides map[string]interface{}, eventManager *events.Manager, log zerolog.Logger) *Service {
	defaults := make(map[string]interface{}, len(SettingDefaults))
	for k, v := range SettingDefaults {
		defaults[k] = v
	}
	for k, v := range overrides {
		if _, ok := defaults[k]; ok {
			defaults[k] = v
		}
	}

	return &Service{
		repo:         repo,
		defaults:     defaults,
		eventManager: eventManager,
		log:          log.With().Str("service", "settings").Logger(),
	}
}

// GetAll returns every known setting, sorted by key.
func (s *Service) GetAll(ctx context.Context) ([]Setting, error) {
	stored, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(s.defaults))
	for k := range s.defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]Setting, 0, len(keys))
	for _, key := range keys {
		raw, ok := stored[key]
		result = append(result, s.resolve(key, raw, ok))
	}
	return result, nil
}

// Get returns a single setting.
func (s *Service) Get(ctx context.Context, key string) (Setting, error) {
	if _, ok := s.defaults[key]; !ok {
		return Setting{}, domain.NotFoundf("unknown setting %q", key)
	}
	raw, err := s.repo.Get(ctx, key)
	if err != nil {
		return Setting{}, err
	}
	if raw == nil {
		return s.resolve(key, "", false), nil
	}
	return s.resolve(key, *raw, true), nil
}

// Set validates and stores a setting, then emits SETTINGS_CHANGED.
func (s *Service) Set(ctx context.Context, key string, value interface{}) (Setting, error) {
	def, ok := s.defaults[key]
	if !ok {
		return Setting{}, domain.NotFoundf("unknown setting %q", key)
	}

	var stored string
	switch def.(type) {
	case float64:
		f, err := toPositiveFloat(value)
		if err != nil {
			return Setting{}, domain.Validationf("setting %s: %v", key, err)
		}
		stored = strconv.FormatFloat(f, 'f', -1, 64)
	default:
		str, isString := value.(string)
		if !isString {
			return Setting{}, domain.Validationf("setting %s: expected a string, got %T", key, value)
		}
		stored = strings.TrimSpace(str)
	}

	description := SettingDescriptions[key]
	if err := s.repo.Set(ctx, key, stored, &description); err != nil {
		return Setting{}, err
	}

	s.log.Info().Str("key", key).Str("value", stored).Msg("Setting updated")
	if s.eventManager != nil {
		s.eventManager.EmitTyped("settings", &events.SettingsChangedData{Key: key, Value: stored})
	}

	return s.resolve(key, stored, true), nil
}

// Reset removes a stored override so the default applies again.
func (s *Service) Reset(ctx context.Context, key string) error {
	if _, ok := s.defaults[key]; !ok {
		return domain.NotFoundf("unknown setting %q", key)
	}
	return s.repo.Delete(ctx, key)
}

// Escalation resolves the escalation sweep configuration.
func (s *Service) Escalation(ctx context.Context) (Escalation, error) {
	threshold, err := s.minutes(ctx, KeyEscalationThresholdMinutes)
	if err != nil {
		return Escalation{}, err
	}
	window, err := s.minutes(ctx, KeyEscalationWindowMinutes)
	if err != nil {
		return Escalation{}, err
	}
	forgotten, err := s.minutes(ctx, KeyForgottenThresholdMinutes)
	if err != nil {
		return Escalation{}, err
	}
	recipients, err := s.Get(ctx, KeyAlertRecipients)
	if err != nil {
		return Escalation{}, err
	}

	return Escalation{
		Threshold:          threshold,
		Window:             window,
		ForgottenThreshold: forgotten,
		Recipients:         SplitRecipients(fmt.Sprint(recipients.Value)),
	}, nil
}

// HoursPerWorkday returns the contracted hours per weekday.
func (s *Service) HoursPerWorkday(ctx context.Context) (float64, error) {
	return s.repo.GetFloat(ctx, KeyHoursPerWorkday, s.defaults[KeyHoursPerWorkday].(float64))
}

func (s *Service) minutes(ctx context.Context, key string) (time.Duration, error) {
	def := time.Duration(s.defaults[key].(float64) * float64(time.Minute))
	return s.repo.GetMinutes(ctx, key, def)
}

func (s *Service) resolve(key, raw string, stored bool) Setting {
	setting := Setting{
		Key:         key,
		Value:       s.defaults[key],
		Description: SettingDescriptions[key],
	}
	if !stored {
		return setting
	}

	switch s.defaults[key].(type) {
	case float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Str("value", raw).Msg("Ignoring unparsable stored setting")
			return setting
		}
		setting.Value = f
	default:
		setting.Value = raw
	}
	setting.Overridden = true
	return setting
}

func toPositiveFloat(value interface{}) (float64, error) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("expected a number, got %T", value)
	}
	if f <= 0 {
		return 0, fmt.Errorf("must be positive, got %v", f)
	}
	return f, nil
}

// SplitRecipients parses a comma separated recipient list, dropping blanks.
func SplitRecipients(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
