// Package dispatch posts JSON events to the external automation endpoints:
// one that runs AI processing on inbound messages and one that sends
// follow-up messages.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"exterminador_backend/platform/apperr"
	"exterminador_backend/platform/config"
	"exterminador_backend/platform/logger"
)

const (
	TargetAI       = "ai"
	TargetFollowup = "followup"

	// InboundEventType tags forwarded inbound messages.
	InboundEventType = "mensaje_entrante"

	maxErrorBody = 512
)

// StatusError is returned when an endpoint answers with a non-2xx status.
type StatusError struct {
	Target     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s dispatch returned %d", e.Target, e.StatusCode)
	}
	return fmt.Sprintf("%s dispatch returned %d: %s", e.Target, e.StatusCode, e.Body)
}

// ErrNotConfigured is returned when the target endpoint URL is empty.
var ErrNotConfigured = apperr.Unavailable("dispatch endpoint not configured")

// InboundMessage is the event forwarded to the AI endpoint for every stored
// inbound message.
type InboundMessage struct {
	Phone          string `json:"numero"`
	Text           string `json:"mensaje"`
	ConversationID int64  `json:"conversation_id"`
	Timestamp      string `json:"timestamp"`
	Type           string `json:"tipo"`
}

type Client struct {
	aiURL       string
	followupURL string
	http        *http.Client
	log         *logger.Logger
}

func NewClient(cfg config.DispatchConfig, log *logger.Logger) *Client {
	return &Client{
		aiURL:       strings.TrimSpace(cfg.GetAIDispatchURL()),
		followupURL: strings.TrimSpace(cfg.GetFollowupDispatchURL()),
		http:        &http.Client{Timeout: cfg.GetDispatchTimeout()},
		log:         log,
	}
}

// DispatchInbound forwards an inbound message to the AI endpoint.
func (c *Client) DispatchInbound(ctx context.Context, msg InboundMessage) error {
	if msg.Type == "" {
		msg.Type = InboundEventType
	}
	_, err := c.post(ctx, TargetAI, c.aiURL, msg)
	return err
}

// DispatchFollowup sends a follow-up action and returns the response status.
// A non-2xx answer is reported as *StatusError together with its status.
func (c *Client) DispatchFollowup(ctx context.Context, payload any) (int, error) {
	return c.post(ctx, TargetFollowup, c.followupURL, payload)
}

func (c *Client) post(ctx context.Context, target, url string, payload any) (int, error) {
	if url == "" {
		return 0, ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", target, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", target, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s request failed: %w", target, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &StatusError{
			Target:     target,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.log.WithContext(ctx).Debug("dispatch delivered", "target", target, "status", resp.StatusCode)
	return resp.StatusCode, nil
}

// StatusCode extracts the HTTP status from a dispatch error, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
