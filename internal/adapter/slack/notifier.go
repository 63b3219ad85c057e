// Package slack implements a notifier.Sender for the chat channel using a
// Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Strob0t/devteam/internal/domain/notification"
	"github.com/Strob0t/devteam/internal/port/notifier"
)

// Sender posts notifications to Slack via an incoming webhook. The
// recipient's channel overrides the webhook's default channel.
type Sender struct {
	webhookURL string
	httpClient *http.Client
}

// NewSender creates a Slack sender with the given webhook URL.
func NewSender(webhookURL string, timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Channel reports the chat channel.
func (s *Sender) Channel() notification.Channel { return notification.ChannelChat }

// slackMessage is the Slack Block Kit message payload.
type slackMessage struct {
	Channel string       `json:"channel,omitempty"`
	Text    string       `json:"text"`
	Blocks  []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string       `json:"type"`
	Text     *slackText   `json:"text,omitempty"`
	Elements []slackBlock `json:"elements,omitempty"`
	URL      string       `json:"url,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (s *Sender) Send(ctx context.Context, to notification.Recipient, c notification.Content) error {
	if s.webhookURL == "" {
		return notifier.ErrNotConfigured
	}

	header := fmt.Sprintf("%s %s", priorityTag(c.Priority), c.Subject)
	msg := slackMessage{
		Channel: to.SlackChannel,
		Text:    header,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: header}},
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: c.Message}},
		},
	}
	if c.ActionURL != "" {
		msg.Blocks = append(msg.Blocks, slackBlock{
			Type: "actions",
			Elements: []slackBlock{{
				Type: "button",
				Text: &slackText{Type: "plain_text", Text: "Open"},
				URL:  c.ActionURL,
			}},
		})
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("slack API %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

func priorityTag(p notification.Priority) string {
	switch p {
	case notification.PriorityUrgent:
		return "[URGENT]"
	case notification.PriorityHigh:
		return "[HIGH]"
	case notification.PriorityLow:
		return "[LOW]"
	default:
		return "[INFO]"
	}
}
