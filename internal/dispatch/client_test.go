package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exterminador_backend/platform/apperr"
	"exterminador_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConfig struct {
	aiURL       string
	followupURL string
}

func (s stubConfig) GetAIDispatchURL() string          { return s.aiURL }
func (s stubConfig) GetFollowupDispatchURL() string    { return s.followupURL }
func (s stubConfig) GetDispatchTimeout() time.Duration { return 2 * time.Second }

func TestDispatchInboundSendsEvent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(stubConfig{aiURL: srv.URL}, logger.Discard())
	err := client.DispatchInbound(context.Background(), InboundMessage{
		Phone:          "50688887777",
		Text:           "hola",
		ConversationID: 42,
		Timestamp:      "2026-01-02T15:04:05Z",
	})
	require.NoError(t, err)

	assert.Equal(t, "50688887777", got["numero"])
	assert.Equal(t, "hola", got["mensaje"])
	assert.Equal(t, float64(42), got["conversation_id"])
	assert.Equal(t, InboundEventType, got["tipo"])
}

func TestDispatchFollowupNon2xxReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	client := NewClient(stubConfig{followupURL: srv.URL}, logger.Discard())
	status, err := client.DispatchFollowup(context.Background(), map[string]any{"numero": "1"})

	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, TargetFollowup, se.Target)
	assert.Equal(t, "upstream down", se.Body)
}

func TestDispatchFollowupAccepts2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewClient(stubConfig{followupURL: srv.URL}, logger.Discard())
	status, err := client.DispatchFollowup(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status)
}

func TestDispatchWithoutURLIsUnavailable(t *testing.T) {
	client := NewClient(stubConfig{}, logger.Discard())

	err := client.DispatchInbound(context.Background(), InboundMessage{Phone: "1"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.True(t, apperr.Is(err, apperr.KindUnavailable))

	status, err := client.DispatchFollowup(context.Background(), nil)
	assert.Zero(t, status)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDispatchTransportErrorHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(stubConfig{followupURL: url}, logger.Discard())
	status, err := client.DispatchFollowup(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Zero(t, status)
	assert.Zero(t, StatusCode(err))
}
