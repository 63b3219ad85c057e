// Package notifier defines the notification channel port (interface).
package notifier

import (
	"context"
	"errors"

	"github.com/Strob0t/devteam/internal/domain/notification"
)

// ErrNotConfigured is returned when a sender is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Sender delivers a notification over one channel.
type Sender interface {
	// Channel returns the channel this sender serves.
	Channel() notification.Channel

	// Send performs a single delivery attempt.
	Send(ctx context.Context, to notification.Recipient, content notification.Content) error
}
