package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookDispatcher_Send(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	d := NewWebhookDispatcher(server.URL, zerolog.Nop())
	err := d.Send(context.Background(), Alert{
		ID:           "a1",
		SessionID:    "s1",
		TechnicianID: 3,
		Kind:         KindForgotten,
		Recipients:   []string{"boss@example.com"},
		Subject:      "subject",
		Message:      "message",
		CreatedAt:    time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "a1", got.AlertID)
	assert.Equal(t, KindForgotten, got.Kind)
	assert.Equal(t, "2024-03-04T12:00:00Z", got.CreatedAt)
}

func TestWebhookDispatcher_Non2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewWebhookDispatcher(server.URL, zerolog.Nop()).Send(context.Background(), Alert{ID: "a1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestLogDispatcher_Send(t *testing.T) {
	assert.NoError(t, NewLogDispatcher(zerolog.Nop()).Send(context.Background(), Alert{ID: "a1"}))
}
