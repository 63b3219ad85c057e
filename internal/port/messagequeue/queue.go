// Package messagequeue defines the message queue port (interface).
package messagequeue

import (
	"context"
	"errors"
)

// Handler processes a message received from the queue. A returned error
// causes a redelivery unless it wraps ErrPermanent, in which case the
// message is dead-lettered at once.
type Handler func(ctx context.Context, subject string, data []byte) error

// ErrPermanent marks a handler failure that a redelivery cannot fix.
var ErrPermanent = errors.New("permanent message failure")

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// SubscribeDurable is Subscribe on a named consumer that survives
	// restarts, so messages published while the process was down are
	// still delivered.
	SubscribeDurable(ctx context.Context, subject, durable string, handler Handler) (cancel func(), err error)

	// Close shuts down the queue connection.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subjects used by the orchestration core.
const (
	SubjectEventPrefix = "devteam.events" // devteam.events.{event type}

	SubjectApprovalCreated   = SubjectEventPrefix + ".approval.created"
	SubjectApprovalResolved  = SubjectEventPrefix + ".approval.resolved"
	SubjectApprovalEscalated = SubjectEventPrefix + ".approval.escalated"
	SubjectIterationStarted  = SubjectEventPrefix + ".iteration.started"
	SubjectIterationClosed   = SubjectEventPrefix + ".iteration.closed"

	SubjectCommandPrefix     = "devteam.commands" // inbound requests from workflow workers
	SubjectApprovalRespond   = SubjectCommandPrefix + ".approval.respond"
	SubjectIterationComplete = SubjectCommandPrefix + ".iteration.complete"

	SubjectCollabSessionCreated = "collab.sessions.created"
	SubjectCollabMessages       = "collab.sessions.messages" // collab.sessions.messages.{session id}
)

// EventSubject maps a broadcast event type to its subject.
func EventSubject(eventType string) string {
	return SubjectEventPrefix + "." + eventType
}
