package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher delivers an alert to its recipients. Delivery is best effort:
// a failed Send marks the alert FAILED, it never removes it.
type Dispatcher interface {
	Send(ctx context.Context, alert Alert) error
}

// LogDispatcher writes alerts to the log. Used when no webhook is configured.
type LogDispatcher struct {
	log zerolog.Logger
}

// NewLogDispatcher creates a dispatcher that only logs.
func NewLogDispatcher(log zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{log: log.With().Str("dispatcher", "log").Logger()}
}

// Send logs the alert.
func (d *LogDispatcher) Send(_ context.Context, alert Alert) error {
	d.log.Warn().
		Str("alert_id", alert.ID).
		Str("session_id", alert.SessionID).
		Int64("technician_id", alert.TechnicianID).
		Str("kind", string(alert.Kind)).
		Strs("recipients", alert.Recipients).
		Msg(alert.Subject)
	return nil
}

// WebhookDispatcher POSTs alerts as JSON to a notification gateway.
type WebhookDispatcher struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewWebhookDispatcher creates a webhook dispatcher.
func NewWebhookDispatcher(url string, log zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.With().Str("dispatcher", "webhook").Logger(),
	}
}

type webhookPayload struct {
	AlertID      string   `json:"alert_id"`
	SessionID    string   `json:"session_id"`
	TechnicianID int64    `json:"technician_id"`
	Kind         Kind     `json:"kind"`
	Recipients   []string `json:"recipients"`
	Subject      string   `json:"subject"`
	Message      string   `json:"message"`
	CreatedAt    string   `json:"created_at"`
}

// Send delivers the alert. Any non-2xx response is an error.
func (d *WebhookDispatcher) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(webhookPayload{
		AlertID:      alert.ID,
		SessionID:    alert.SessionID,
		TechnicianID: alert.TechnicianID,
		Kind:         alert.Kind,
		Recipients:   alert.Recipients,
		Subject:      alert.Subject,
		Message:      alert.Message,
		CreatedAt:    alert.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert %s: %w", alert.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("alert webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	d.log.Debug().Str("alert_id", alert.ID).Int("status", resp.StatusCode).Msg("Alert delivered")
	return nil
}
