// Package email provides an SMTP-based notifier.Sender for the email channel.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/Strob0t/devteam/internal/domain/notification"
	"github.com/Strob0t/devteam/internal/port/notifier"
)

// SMTPConfig holds the configuration for SMTP connections.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender sends email notifications via SMTP.
type Sender struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
}

// NewSender creates a new email sender.
func NewSender(cfg SMTPConfig) *Sender {
	return &Sender{cfg: cfg, sendMail: smtp.SendMail}
}

// Channel reports the email channel.
func (s *Sender) Channel() notification.Channel { return notification.ChannelEmail }

// Send delivers one plain-text email.
func (s *Sender) Send(ctx context.Context, to notification.Recipient, c notification.Content) error {
	if s.cfg.Host == "" || s.cfg.From == "" {
		return notifier.ErrNotConfigured
	}
	if to.Email == "" {
		return fmt.Errorf("email: recipient has no address")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.From, s.cfg.Password, s.cfg.Host)
	}

	if err := s.sendMail(addr, auth, s.cfg.From, []string{to.Email}, buildMessage(s.cfg.From, to.Email, c)); err != nil {
		return fmt.Errorf("email send: %w", err)
	}
	return nil
}

func buildMessage(from, to string, c notification.Content) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", headerSafe(c.Subject))
	if c.Priority == notification.PriorityUrgent || c.Priority == notification.PriorityHigh {
		b.WriteString("X-Priority: 1\r\n")
	}
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(c.Message)
	if c.ActionURL != "" {
		fmt.Fprintf(&b, "\r\n\r\n%s\r\n", c.ActionURL)
	}
	return []byte(b.String())
}

// headerSafe strips line breaks so a subject cannot inject headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
