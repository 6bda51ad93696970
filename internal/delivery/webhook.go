// Package delivery pushes assistant replies back to the upstream
// platform over its participant send webhook.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Sender is the delivery capability consumed by transport handlers.
type Sender interface {
	Deliver(ctx context.Context, userID, text string) error
}

// Webhook delivers replies with a fire-and-forget POST to
// {base}/{userID}/send. Failures are logged and returned, never retried
// here; the caller decides whether the outcome matters.
type Webhook struct {
	baseURL    string
	httpClient *http.Client
}

// NewWebhook creates a Webhook sender for the given base URL.
func NewWebhook(baseURL string, httpClient *http.Client) (*Webhook, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("delivery: base URL must not be empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{baseURL: baseURL, httpClient: httpClient}, nil
}

type sendPayload struct {
	Message string `json:"message"`
}

// Deliver POSTs one reply to the participant's send endpoint.
func (w *Webhook) Deliver(ctx context.Context, userID, text string) error {
	body, err := json.Marshal(sendPayload{Message: text})
	if err != nil {
		return fmt.Errorf("delivery: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/send", w.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("delivery: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := w.httpClient.Do(req)
	if err != nil {
		slog.Error("failed to deliver reply", "user_id", userID, "error", err)
		return fmt.Errorf("delivery: post reply: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		slog.Warn("reply delivery rejected", "user_id", userID, "status", res.StatusCode, "detail", string(detail))
		return fmt.Errorf("delivery: status %d from %s", res.StatusCode, url)
	}

	slog.Info("reply delivered", "user_id", userID, "status", res.StatusCode)
	return nil
}
