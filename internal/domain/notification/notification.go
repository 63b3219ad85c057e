// Package notification defines domain types for outbound stakeholder messages.
package notification

import (
	"errors"
	"time"
)

// Type identifies what a notification is about.
type Type string

const (
	TypeApprovalRequest   Type = "approval_request"
	TypeIterationStarted  Type = "iteration_started"
	TypeWorkflowCompleted Type = "workflow_completed"
	TypeEscalation        Type = "escalation"
)

// Status represents the delivery state of a notification.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Priority is the urgency shown to the recipient.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Channel is a delivery medium.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelChat    Channel = "chat"
	ChannelWebhook Channel = "webhook"
)

// Recipient holds the contact details a notification can be delivered to.
type Recipient struct {
	UserID       string `json:"user_id,omitempty"`
	Email        string `json:"email,omitempty"`
	SlackChannel string `json:"slack_channel,omitempty"`
	WebhookURL   string `json:"webhook_url,omitempty"`
}

// Channel selects exactly one channel by precedence: email, then chat, then webhook.
func (r Recipient) Channel() (Channel, bool) {
	switch {
	case r.Email != "":
		return ChannelEmail, true
	case r.SlackChannel != "":
		return ChannelChat, true
	case r.WebhookURL != "":
		return ChannelWebhook, true
	}
	return "", false
}

// Content is the message body.
type Content struct {
	Subject   string   `json:"subject"`
	Message   string   `json:"message"`
	ActionURL string   `json:"action_url,omitempty"`
	Priority  Priority `json:"priority"`
}

// Notification is one outbound message and its delivery bookkeeping.
type Notification struct {
	ID            string     `json:"id"`
	Type          Type       `json:"type"`
	RecipientType string     `json:"recipient_type"`
	Recipient     Recipient  `json:"recipient"`
	Content       Content    `json:"content"`
	Status        Status     `json:"status"`
	Channel       Channel    `json:"channel,omitempty"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

// CanAttempt reports whether another delivery attempt is allowed.
func (n *Notification) CanAttempt() bool {
	return n.Status != StatusSent && n.Status != StatusDelivered && n.Attempts < n.MaxAttempts
}

// ErrNoChannel is returned when a recipient has no usable contact field.
var ErrNoChannel = errors.New("recipient has no delivery channel")

// Clone returns a copy of n.
func (n *Notification) Clone() *Notification {
	c := *n
	if n.SentAt != nil {
		t := *n.SentAt
		c.SentAt = &t
	}
	return &c
}
