// Package watchdog runs the two periodic session duties: the daily cutoff
// sweep that closes forgotten sessions, and the escalation sweep that alerts
// on sessions running too long. Both act only on sessions that still match
// their trigger when they run, so overlapping or repeated runs are safe.
package watchdog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/clock"
	"github.com/aristath/techclock/internal/domain"
	"github.com/aristath/techclock/internal/events"
	"github.com/aristath/techclock/internal/modules/alerts"
	"github.com/aristath/techclock/internal/modules/stopwatch"
	"github.com/aristath/techclock/internal/modules/timeentries"
)

// SessionLister finds running sessions.
type SessionLister interface {
	ListRunning(ctx context.Context) ([]stopwatch.Session, error)
	ListRunningStartedBefore(ctx context.Context, t time.Time) ([]stopwatch.Session, error)
}

// SessionCloser closes one session through the auto-close path.
type SessionCloser interface {
	AutoClose(ctx context.Context, sessionID string, cutoff time.Time) (*timeentries.TimeEntry, error)
}

// AlertRaiser creates and dispatches escalation alerts.
type AlertRaiser interface {
	Raise(ctx context.Context, session stopwatch.Session, kind alerts.Kind, now time.Time, window time.Duration) (*alerts.Alert, bool, error)
	HasAlertSince(ctx context.Context, sessionID string, since time.Time) (bool, error)
}

// TimeOfDay is a wall-clock time in the watchdog's location.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MostRecent returns the latest instant at or before now whose wall-clock time
// in loc is t.
func (t TimeOfDay) MostRecent(now time.Time, loc *time.Location) time.Time {
	today := clock.At(now, t.Hour, t.Minute, loc)
	if today.After(now) {
		return clock.At(now.In(loc).AddDate(0, 0, -1), t.Hour, t.Minute, loc)
	}
	return today
}

// Failure is one session a sweep could not process.
type Failure struct {
	SessionID    string `json:"session_id"`
	TechnicianID int64  `json:"technician_id"`
	Error        string `json:"error"`
}

// CutoffResult summarizes a cutoff sweep.
type CutoffResult struct {
	Cutoff   time.Time `json:"cutoff"`
	Closed   int       `json:"closed"`
	Failures []Failure `json:"failures"`
}

// EscalationParams configure one escalation sweep.
type EscalationParams struct {
	Threshold          time.Duration
	Window             time.Duration
	ForgottenThreshold time.Duration
	DryRun             bool
}

// Candidate is a session that matched the escalation threshold.
type Candidate struct {
	SessionID      string        `json:"session_id"`
	TechnicianID   int64         `json:"technician_id"`
	Elapsed        time.Duration `json:"-"`
	ElapsedMinutes int           `json:"elapsed_minutes"`
	Kind           alerts.Kind   `json:"kind"`
	Alerted        bool          `json:"alerted"`
}

// EscalationResult summarizes an escalation sweep. In a dry run Alerted
// counts the alerts that would have been created.
type EscalationResult struct {
	Alerted    int         `json:"alerted"`
	Skipped    int         `json:"skipped"`
	DryRun     bool        `json:"dry_run"`
	Candidates []Candidate `json:"candidates"`
	Failures   []Failure   `json:"failures"`
}

// Watchdog runs the sweeps.
type Watchdog struct {
	sessions SessionLister
	closer   SessionCloser
	alerts   AlertRaiser
	events   *events.Manager
	clock    clock.Clock
	loc      *time.Location
	log      zerolog.Logger
}

// New creates a watchdog. eventManager may be nil.
func New(sessions SessionLister, closer SessionCloser, alertRaiser AlertRaiser, eventManager *events.Manager, clk clock.Clock, loc *time.Location, log zerolog.Logger) *Watchdog {
	if loc == nil {
		loc = time.Local
	}
	return &Watchdog{
		sessions: sessions,
		closer:   closer,
		alerts:   alertRaiser,
		events:   eventManager,
		clock:    clk,
		loc:      loc,
		log:      log.With().Str("service", "watchdog").Logger(),
	}
}

// RunCutoffSweep closes every running session. The cutoff instant is the most
// recent occurrence of cutoff; sessions started before it end at it, later
// ones end now. A failure on one session is logged and recorded, and the sweep
// moves on. No transaction spans the sweep.
func (w *Watchdog) RunCutoffSweep(ctx context.Context, cutoff TimeOfDay) (*CutoffResult, error) {
	now := w.clock.Now()
	result := &CutoffResult{
		Cutoff:   cutoff.MostRecent(now, w.loc),
		Failures: []Failure{},
	}

	running, err := w.sessions.ListRunning(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list running sessions: %w", err)
	}

	for _, s := range running {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if _, err := w.closer.AutoClose(ctx, s.ID, result.Cutoff); err != nil {
			w.log.Error().
				Err(err).
				Str("session_id", s.ID).
				Int64("technician_id", s.TechnicianID).
				Msg("Failed to auto-close session")
			result.Failures = append(result.Failures, Failure{
				SessionID:    s.ID,
				TechnicianID: s.TechnicianID,
				Error:        err.Error(),
			})
			continue
		}
		result.Closed++
	}

	w.log.Info().
		Time("cutoff", result.Cutoff).
		Int("running", len(running)).
		Int("closed", result.Closed).
		Int("failures", len(result.Failures)).
		Msg("Cutoff sweep completed")

	w.emit(&events.SweepCompletedData{Sweep: "cutoff", Processed: result.Closed, Failures: len(result.Failures)})
	return result, nil
}

// RunEscalationSweep alerts on sessions that have been running for at least
// Threshold and have no alert created within the last Window. Sessions past
// ForgottenThreshold get a FORGOTTEN alert. In a dry run nothing is written
// or sent.
func (w *Watchdog) RunEscalationSweep(ctx context.Context, p EscalationParams) (*EscalationResult, error) {
	if p.Threshold <= 0 {
		return nil, domain.Validationf("escalation threshold must be positive")
	}
	if p.Window <= 0 {
		return nil, domain.Validationf("escalation window must be positive")
	}

	now := w.clock.Now()
	result := &EscalationResult{
		DryRun:     p.DryRun,
		Candidates: []Candidate{},
		Failures:   []Failure{},
	}

	candidates, err := w.sessions.ListRunningStartedBefore(ctx, now.Add(-p.Threshold))
	if err != nil {
		return nil, fmt.Errorf("failed to list long-running sessions: %w", err)
	}

	for _, s := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		elapsed := s.Elapsed(now)
		c := Candidate{
			SessionID:      s.ID,
			TechnicianID:   s.TechnicianID,
			Elapsed:        elapsed,
			ElapsedMinutes: int(elapsed.Minutes()),
			Kind:           alerts.ClassifyElapsed(elapsed, p.ForgottenThreshold),
		}

		alerted, err := w.escalate(ctx, s, c.Kind, now, p)
		if err != nil {
			w.log.Error().
				Err(err).
				Str("session_id", s.ID).
				Int64("technician_id", s.TechnicianID).
				Msg("Failed to escalate session")
			result.Failures = append(result.Failures, Failure{
				SessionID:    s.ID,
				TechnicianID: s.TechnicianID,
				Error:        err.Error(),
			})
			continue
		}

		c.Alerted = alerted
		if alerted {
			result.Alerted++
		} else {
			result.Skipped++
		}
		result.Candidates = append(result.Candidates, c)
	}

	w.log.Info().
		Dur("threshold", p.Threshold).
		Dur("window", p.Window).
		Bool("dry_run", p.DryRun).
		Int("candidates", len(candidates)).
		Int("alerted", result.Alerted).
		Int("skipped", result.Skipped).
		Int("failures", len(result.Failures)).
		Msg("Escalation sweep completed")

	w.emit(&events.SweepCompletedData{
		Sweep:     "escalation",
		Processed: result.Alerted,
		Failures:  len(result.Failures),
		DryRun:    p.DryRun,
	})
	return result, nil
}

func (w *Watchdog) escalate(ctx context.Context, s stopwatch.Session, kind alerts.Kind, now time.Time, p EscalationParams) (bool, error) {
	if p.DryRun {
		recent, err := w.alerts.HasAlertSince(ctx, s.ID, now.Add(-p.Window))
		if err != nil {
			return false, err
		}
		return !recent, nil
	}

	alert, created, err := w.alerts.Raise(ctx, s, kind, now, p.Window)
	if err != nil || !created {
		return false, err
	}

	w.emit(&events.AlertRaisedData{
		AlertID:      alert.ID,
		SessionID:    s.ID,
		TechnicianID: s.TechnicianID,
		Kind:         string(alert.Kind),
		Status:       string(alert.Status),
	})
	return true, nil
}

func (w *Watchdog) emit(data events.EventData) {
	if w.events != nil {
		w.events.EmitTyped("watchdog", data)
	}
}
