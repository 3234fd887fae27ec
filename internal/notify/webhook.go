package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Webhook payload formats.
const (
	// FormatGeneric posts the full notification as a flat JSON object.
	FormatGeneric = "generic"

	// FormatSlack posts a Slack-compatible {"text": ...} payload.
	FormatSlack = "slack"
)

// Webhook posts notifications as JSON to a configured URL.
type Webhook struct {
	url    string
	format string
	client *http.Client
}

// NewWebhook creates a webhook notifier. An unknown format falls back to
// generic.
func NewWebhook(url, format string) *Webhook {
	return &Webhook{
		url:    url,
		format: format,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the notification to the configured URL.
func (w *Webhook) Send(n Notification) error {
	var payload any
	switch w.format {
	case FormatSlack:
		payload = map[string]string{
			"text": fmt.Sprintf("%s: %s", n.Title, n.Body),
		}
	default:
		payload = map[string]string{
			"title":       n.Title,
			"body":        n.Body,
			"workflow_id": n.WorkflowID,
			"reason":      n.Reason,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Name returns the name of this notifier.
func (w *Webhook) Name() string { return "webhook" }
