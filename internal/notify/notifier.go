// Package notify provides notification backends for deploy results.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Event represents a notification event.
type Event struct {
	Type      EventType
	Project   string
	Host      string
	WebDir    string
	Stage     string // failed stage, for EventDeployFailed
	Message   string
	Timestamp time.Time
	Details   map[string]string
}

// EventType represents the type of notification event.
type EventType string

const (
	EventDeployStarted   EventType = "deploy_started"
	EventDeploySucceeded EventType = "deploy_succeeded"
	EventDeployFailed    EventType = "deploy_failed"
)

// Notifier is the interface for notification backends.
type Notifier interface {
	// Name returns the name of the notifier.
	Name() string

	// Send sends a notification event.
	Send(ctx context.Context, event Event) error

	// Close cleans up any resources.
	Close() error
}

// Manager fans events out to every registered notifier.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
	}
}

// Register adds a notifier to the manager.
func (m *Manager) Register(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Notify sends an event to all registered notifiers concurrently and
// collects their errors.
func (m *Manager) Notify(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for _, n := range m.notifiers {
		wg.Add(1)
		go func(notifier Notifier) {
			defer wg.Done()
			if err := notifier.Send(ctx, event); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
				mu.Unlock()
			}
		}(n)
	}
	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %v", errs)
	}
	return nil
}

// Close closes all registered notifiers.
func (m *Manager) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Count returns the number of registered notifiers.
func (m *Manager) Count() int {
	return len(m.notifiers)
}

// FormatMessage creates a human-readable message from an event.
func FormatMessage(event Event) string {
	switch event.Type {
	case EventDeployStarted:
		return fmt.Sprintf("🚀 Deploying %s to %s", event.Project, event.Host)
	case EventDeploySucceeded:
		return fmt.Sprintf("✅ %s deployed to %s:%s", event.Project, event.Host, event.WebDir)
	case EventDeployFailed:
		if event.Stage != "" {
			return fmt.Sprintf("❌ Deploy of %s failed at %s: %s", event.Project, event.Stage, event.Message)
		}
		return fmt.Sprintf("❌ Deploy of %s failed: %s", event.Project, event.Message)
	default:
		return fmt.Sprintf("[%s] %s: %s", event.Type, event.Project, event.Message)
	}
}

// GetEventTitle returns a human-readable title for an event type.
func GetEventTitle(event Event) string {
	switch event.Type {
	case EventDeployStarted:
		return "🚀 Deploy Started"
	case EventDeploySucceeded:
		return "✅ Deploy Succeeded"
	case EventDeployFailed:
		return "❌ Deploy Failed"
	default:
		return string(event.Type)
	}
}

// postJSON sends payload to url once. Notifications are best effort and are
// not retried.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
