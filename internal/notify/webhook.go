package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// WebhookNotifier sends notifications via HTTP webhooks.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// WebhookPayload is the JSON payload sent to webhooks.
type WebhookPayload struct {
	Type      string            `json:"type"`
	Project   string            `json:"project"`
	Host      string            `json:"host,omitempty"`
	WebDir    string            `json:"web_dir,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	Message   string            `json:"message"`
	Timestamp string            `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(url string, headers map[string]string) *WebhookNotifier {
	return &WebhookNotifier{
		url:     url,
		headers: headers,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the notifier name.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// Send sends a notification via HTTP POST.
func (w *WebhookNotifier) Send(ctx context.Context, event Event) error {
	payload := WebhookPayload{
		Type:      string(event.Type),
		Project:   event.Project,
		Host:      event.Host,
		WebDir:    event.WebDir,
		Stage:     event.Stage,
		Message:   FormatMessage(event),
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Details:   event.Details,
	}

	if err := postJSON(ctx, w.client, w.url, w.headers, payload); err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	return nil
}

// Close cleans up resources.
func (w *WebhookNotifier) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
