// Package webhook implements a notifier.Sender that POSTs notifications as
// JSON to the recipient's webhook URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Strob0t/devteam/internal/domain/notification"
	"github.com/Strob0t/devteam/internal/port/notifier"
	"github.com/Strob0t/devteam/internal/resilience"
)

// Payload is the JSON body delivered to webhook receivers.
type Payload struct {
	Subject   string                `json:"subject"`
	Message   string                `json:"message"`
	ActionURL string                `json:"action_url,omitempty"`
	Priority  notification.Priority `json:"priority"`
	UserID    string                `json:"user_id,omitempty"`
	SentAt    time.Time             `json:"sent_at"`
}

// Sender posts to arbitrary webhook URLs. Each host gets its own circuit
// breaker so one dead receiver does not slow down the others.
type Sender struct {
	httpClient *http.Client
	breakers   *resilience.Breakers
}

// NewSender creates a webhook sender.
func NewSender(timeout time.Duration, breakers *resilience.Breakers) *Sender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if breakers == nil {
		breakers = resilience.NewBreakers(5, 30*time.Second)
	}
	return &Sender{
		httpClient: &http.Client{Timeout: timeout},
		breakers:   breakers,
	}
}

// Channel reports the webhook channel.
func (s *Sender) Channel() notification.Channel { return notification.ChannelWebhook }

func (s *Sender) Send(ctx context.Context, to notification.Recipient, c notification.Content) error {
	if to.WebhookURL == "" {
		return notifier.ErrNotConfigured
	}
	u, err := url.Parse(to.WebhookURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("webhook: invalid url %q", to.WebhookURL)
	}

	body, err := json.Marshal(Payload{
		Subject:   c.Subject,
		Message:   c.Message,
		ActionURL: c.ActionURL,
		Priority:  c.Priority,
		UserID:    to.UserID,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("webhook marshal: %w", err)
	}

	return s.breakers.Get(u.Host).ExecuteContext(ctx, func(ctx context.Context) error {
		return s.post(ctx, u.String(), body)
	})
}

func (s *Sender) post(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "devteam-notifier/1.0")

	resp, err := s.httpClient.Do(req) //nolint:gosec // URL comes from the approver directory
	if err != nil {
		return fmt.Errorf("webhook send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("webhook %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
