// Package broadcast defines the port for broadcasting real-time events to connected clients.
package broadcast

import "context"

// Event types broadcast by the orchestration core.
const (
	EventApprovalCreated    = "approval.created"
	EventApprovalResolved   = "approval.resolved"
	EventApprovalEscalated  = "approval.escalated"
	EventIterationStarted   = "iteration.started"
	EventIterationClosed    = "iteration.closed"
	EventNotificationStatus = "notification.status"
)

// Broadcaster sends real-time events to all connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Multi fans an event out to several broadcasters.
type Multi []Broadcaster

// BroadcastEvent forwards the event to every non-nil member.
func (m Multi) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	for _, b := range m {
		if b != nil {
			b.BroadcastEvent(ctx, eventType, payload)
		}
	}
}

// Nop discards every event.
type Nop struct{}

// BroadcastEvent does nothing.
func (Nop) BroadcastEvent(context.Context, string, any) {}
