package notify

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// SlackNotifier sends notifications to Slack via incoming webhooks.
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	client     *http.Client
}

// SlackMessage represents a Slack webhook message.
type SlackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment represents a Slack message attachment.
type SlackAttachment struct {
	Color  string       `json:"color,omitempty"`
	Title  string       `json:"title,omitempty"`
	Text   string       `json:"text,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	Ts     int64        `json:"ts,omitempty"`
}

// SlackField represents a field in a Slack attachment.
type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short,omitempty"`
}

// Slack attachment colors.
const (
	SlackColorGood   = "good"   // Green
	SlackColorDanger = "danger" // Red
)

// NewSlackNotifier creates a new Slack notifier.
func NewSlackNotifier(webhookURL, channel, username string) *SlackNotifier {
	if username == "" {
		username = "distpush"
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		username:   username,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the notifier name.
func (s *SlackNotifier) Name() string {
	return "slack"
}

// Send sends a notification to Slack.
func (s *SlackNotifier) Send(ctx context.Context, event Event) error {
	msg := SlackMessage{
		Channel:     s.channel,
		Username:    s.username,
		IconEmoji:   ":package:",
		Attachments: []SlackAttachment{s.createAttachment(event)},
	}

	if err := postJSON(ctx, s.client, s.webhookURL, nil, msg); err != nil {
		return fmt.Errorf("failed to send to Slack: %w", err)
	}
	return nil
}

// Close cleans up resources.
func (s *SlackNotifier) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *SlackNotifier) createAttachment(event Event) SlackAttachment {
	attachment := SlackAttachment{
		Title:  GetEventTitle(event),
		Text:   FormatMessage(event),
		Color:  slackColor(event.Type),
		Footer: "distpush",
		Ts:     event.Timestamp.Unix(),
	}

	fields := []SlackField{
		{Title: "Project", Value: event.Project, Short: true},
	}
	if event.Host != "" {
		fields = append(fields, SlackField{Title: "Host", Value: event.Host, Short: true})
	}
	if event.Stage != "" {
		fields = append(fields, SlackField{Title: "Stage", Value: event.Stage, Short: true})
	}

	keys := make([]string, 0, len(event.Details))
	for k := range event.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, SlackField{Title: k, Value: event.Details[k], Short: true})
	}

	attachment.Fields = fields
	return attachment
}

func slackColor(t EventType) string {
	switch t {
	case EventDeploySucceeded:
		return SlackColorGood
	case EventDeployFailed:
		return SlackColorDanger
	default:
		return ""
	}
}
