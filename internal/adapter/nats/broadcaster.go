package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/devteam/internal/port/broadcast"
	"github.com/Strob0t/devteam/internal/port/messagequeue"
)

var _ broadcast.Broadcaster = (*Broadcaster)(nil)

// Broadcaster publishes orchestration events on devteam.events.<type> so
// workers outside this process can follow approvals and iterations.
type Broadcaster struct {
	pub publisher
}

type publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NewBroadcaster creates a broadcaster on top of q.
func NewBroadcaster(q messagequeue.Queue) *Broadcaster {
	return &Broadcaster{pub: q}
}

// BroadcastEvent publishes payload as JSON. Failures are logged; the
// caller's operation is never failed by a lost event.
func (b *Broadcaster) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal event", "type", eventType, "error", err)
		return
	}
	if err := b.pub.Publish(ctx, messagequeue.EventSubject(eventType), data); err != nil {
		slog.Warn("publish event failed", "type", eventType, "error", err)
	}
}
