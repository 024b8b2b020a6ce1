package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/techclock/internal/modules/stopwatch"
)

// Service raises escalation alerts: it creates the record, then dispatches it.
type Service struct {
	repo       *Repository
	dispatcher Dispatcher
	log        zerolog.Logger

	mu         sync.RWMutex
	recipients []string
}

// NewService creates a new alert service.
func NewService(repo *Repository, dispatcher Dispatcher, recipients []string, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		recipients: recipients,
		log:        log.With().Str("service", "alerts").Logger(),
	}
}

// SetRecipients replaces the recipients of alerts raised from now on.
func (s *Service) SetRecipients(recipients []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients = append([]string(nil), recipients...)
}

func (s *Service) currentRecipients() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.recipients))
	copy(out, s.recipients)
	return out
}

// ClassifyElapsed picks the alert kind for a session running for elapsed.
func ClassifyElapsed(elapsed, forgottenThreshold time.Duration) Kind {
	if forgottenThreshold > 0 && elapsed >= forgottenThreshold {
		return KindForgotten
	}
	return KindActive
}

// Raise creates an alert for a running session unless one was created within
// window before now, then dispatches it. It reports whether an alert was
// created. A dispatch failure is logged and recorded on the alert; it is not
// returned and does not undo the creation.
func (s *Service) Raise(ctx context.Context, session stopwatch.Session, kind Kind, now time.Time, window time.Duration) (*Alert, bool, error) {
	elapsed := session.Elapsed(now)
	alert := &Alert{
		ID:           uuid.NewString(),
		SessionID:    session.ID,
		TechnicianID: session.TechnicianID,
		Kind:         kind,
		Recipients:   s.currentRecipients(),
		Subject:      subjectFor(kind, session.TechnicianID, elapsed),
		Message:      messageFor(kind, session, elapsed),
		Status:       StatusPending,
		CreatedAt:    now,
	}
	created, err := s.repo.CreateIfNoneSince(ctx, alert, now.Add(-window))
	if err != nil {
		return nil, false, err
	}
	if !created {
		return nil, false, nil
	}

	status := StatusSent
	if err := s.dispatcher.Send(ctx, *alert); err != nil {
		status = StatusFailed
		s.log.Error().
			Err(err).
			Str("alert_id", alert.ID).
			Str("session_id", session.ID).
			Msg("Failed to dispatch alert")
	}

	if err := s.repo.MarkDispatched(ctx, alert.ID, status, now); err != nil {
		s.log.Error().Err(err).Str("alert_id", alert.ID).Msg("Failed to record alert delivery status")
	} else {
		alert.Status = status
		dispatchedAt := now
		alert.DispatchedAt = &dispatchedAt
	}

	return alert, true, nil
}

// Recent returns the newest alerts.
func (s *Service) Recent(ctx context.Context, limit int) ([]Alert, error) {
	return s.repo.ListRecent(ctx, limit)
}

func subjectFor(kind Kind, technicianID int64, elapsed time.Duration) string {
	if kind == KindForgotten {
		return fmt.Sprintf("Stopwatch possibly forgotten: technician %d, running %s", technicianID, formatElapsed(elapsed))
	}
	return fmt.Sprintf("Stopwatch running %s: technician %d", formatElapsed(elapsed), technicianID)
}

func messageFor(kind Kind, session stopwatch.Session, elapsed time.Duration) string {
	msg := fmt.Sprintf("Technician %d has had a stopwatch running since %s (%s) on activity %d.",
		session.TechnicianID, session.StartTime.Format("2006-01-02 15:04"), formatElapsed(elapsed), session.ActivityTypeID)
	if session.ServiceOrderID != nil {
		msg += fmt.Sprintf(" Service order: %d.", *session.ServiceOrderID)
	}
	if session.Description != "" {
		msg += fmt.Sprintf(" Description: %s.", session.Description)
	}
	if kind == KindForgotten {
		msg += " The session may have been left running by mistake; please confirm and stop it."
	} else {
		msg += " Please check whether the work is still in progress."
	}
	return msg
}

func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%02dm", h, m)
}

// HasAlertSince reports whether the session has an alert created after since.
func (s *Service) HasAlertSince(ctx context.Context, sessionID string, since time.Time) (bool, error) {
	return s.repo.HasAlertSince(ctx, sessionID, since)
}
