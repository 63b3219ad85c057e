// Package service contains application services.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	cfotel "github.com/Strob0t/devteam/internal/adapter/otel"
	"github.com/Strob0t/devteam/internal/config"
	"github.com/Strob0t/devteam/internal/domain"
	"github.com/Strob0t/devteam/internal/domain/notification"
	"github.com/Strob0t/devteam/internal/port/broadcast"
	"github.com/Strob0t/devteam/internal/port/database"
	"github.com/Strob0t/devteam/internal/port/notifier"
	"github.com/Strob0t/devteam/internal/scheduler"
)

// NotificationStatusEvent is broadcast after every delivery attempt.
type NotificationStatusEvent struct {
	NotificationID string              `json:"notification_id"`
	Type           notification.Type   `json:"type"`
	Status         notification.Status `json:"status"`
	Channel        string              `json:"channel,omitempty"`
	Attempts       int                 `json:"attempts"`
}

// NotificationDispatcher persists notifications and delivers them over the
// first usable channel of the recipient, retrying failed deliveries after a
// fixed delay until the attempt budget is spent.
type NotificationDispatcher struct {
	store   database.Notifications
	senders map[notification.Channel]notifier.Sender
	sched   scheduler.Scheduler
	hub     broadcast.Broadcaster
	metrics *cfotel.Metrics
	cfg     config.Notification
	now     func() time.Time

	inflight sync.Map // notification id -> struct{}; a Deliver is running
	retrying sync.Map // notification id -> struct{}; a retry timer is armed
}

// NewNotificationDispatcher creates a dispatcher. Senders are keyed by the
// channel they report; a later sender for the same channel wins.
func NewNotificationDispatcher(
	store database.Notifications,
	senders []notifier.Sender,
	sched scheduler.Scheduler,
	hub broadcast.Broadcaster,
	cfg config.Notification,
) *NotificationDispatcher {
	byChannel := make(map[notification.Channel]notifier.Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	if hub == nil {
		hub = broadcast.Nop{}
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	return &NotificationDispatcher{
		store:   store,
		senders: byChannel,
		sched:   sched,
		hub:     hub,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetMetrics attaches metric instruments.
func (d *NotificationDispatcher) SetMetrics(m *cfotel.Metrics) { d.metrics = m }

// Dispatch persists n as pending and schedules an immediate delivery.
// It never waits for the delivery itself.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, n *notification.Notification) (string, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.Status = notification.StatusPending
	n.Attempts = 0
	if n.MaxAttempts < 1 {
		n.MaxAttempts = d.cfg.MaxAttempts
	}
	if n.Content.Priority == "" {
		n.Content.Priority = notification.PriorityMedium
	}
	n.CreatedAt = d.now().UTC()

	if err := d.store.CreateNotification(ctx, n); err != nil {
		return "", fmt.Errorf("dispatch %s notification: %w", n.Type, err)
	}

	id := n.ID
	d.sched.After(0, func(ctx context.Context) {
		if _, err := d.Deliver(ctx, id); err != nil {
			slog.Warn("notification delivery failed", "notification_id", id, "error", err)
		}
	})
	return id, nil
}

// Deliver makes one delivery attempt. It reports whether the notification
// was delivered by this call. Send failures are recorded on the notification
// and are not returned as errors; only store faults are.
func (d *NotificationDispatcher) Deliver(ctx context.Context, id string) (bool, error) {
	if _, busy := d.inflight.LoadOrStore(id, struct{}{}); busy {
		return false, nil
	}
	defer d.inflight.Delete(id)

	n, err := d.store.GetNotification(ctx, id)
	if err != nil {
		return false, fmt.Errorf("deliver notification %s: %w", id, err)
	}
	if !n.CanAttempt() {
		return false, nil
	}

	ch, sendErr := d.send(ctx, n)
	n.Attempts++
	n.Channel = ch

	if sendErr == nil {
		sent := d.now().UTC()
		n.Status = notification.StatusDelivered
		n.SentAt = &sent
		n.LastError = ""
	} else {
		n.Status = notification.StatusFailed
		n.LastError = sendErr.Error()
	}

	if err := d.store.UpdateNotification(ctx, n); err != nil {
		return false, fmt.Errorf("record delivery of %s: %w", id, err)
	}

	d.metrics.NotificationAttempt(ctx, string(ch), sendErr == nil)
	d.hub.BroadcastEvent(ctx, broadcast.EventNotificationStatus, NotificationStatusEvent{
		NotificationID: n.ID,
		Type:           n.Type,
		Status:         n.Status,
		Channel:        string(ch),
		Attempts:       n.Attempts,
	})

	if sendErr != nil {
		slog.Warn("notification attempt failed",
			"notification_id", id,
			"channel", ch,
			"attempt", n.Attempts,
			"max_attempts", n.MaxAttempts,
			"error", sendErr,
		)
		if n.Attempts < n.MaxAttempts && !errors.Is(sendErr, notification.ErrNoChannel) {
			d.scheduleRetry(id)
		}
		return false, nil
	}

	slog.Debug("notification delivered", "notification_id", id, "channel", ch, "attempt", n.Attempts)
	return true, nil
}

func (d *NotificationDispatcher) send(ctx context.Context, n *notification.Notification) (notification.Channel, error) {
	ch, ok := n.Recipient.Channel()
	if !ok {
		return "", notification.ErrNoChannel
	}
	sender, ok := d.senders[ch]
	if !ok {
		return ch, fmt.Errorf("%s sender: %w", ch, notifier.ErrNotConfigured)
	}

	ctx, span := cfotel.StartDeliverySpan(ctx, n.ID, string(ch))
	defer span.End()
	if err := sender.Send(ctx, n.Recipient, n.Content); err != nil {
		span.RecordError(err)
		return ch, err
	}
	return ch, nil
}

// scheduleRetry arms at most one retry timer per notification.
func (d *NotificationDispatcher) scheduleRetry(id string) {
	if _, armed := d.retrying.LoadOrStore(id, struct{}{}); armed {
		return
	}
	d.sched.After(d.cfg.RetryDelay, func(ctx context.Context) {
		d.retrying.Delete(id)
		if _, err := d.Deliver(ctx, id); err != nil {
			slog.Warn("notification retry failed", "notification_id", id, "error", err)
		}
	})
}

// Resume re-arms deliveries lost to a restart. Pending notifications are
// attempted at once; failed ones that still have attempts left get their
// fixed-delay retry. It returns how many were re-armed.
func (d *NotificationDispatcher) Resume(ctx context.Context) (int, error) {
	armed := 0
	for _, status := range []notification.Status{notification.StatusPending, notification.StatusFailed} {
		list, err := d.store.ListNotifications(ctx, status)
		if err != nil {
			return armed, fmt.Errorf("resume %s notifications: %w", status, err)
		}
		for i := range list {
			n := &list[i]
			if !n.CanAttempt() {
				continue
			}
			if _, ok := n.Recipient.Channel(); !ok {
				continue
			}
			id := n.ID
			if status == notification.StatusPending {
				d.sched.After(0, func(ctx context.Context) {
					if _, err := d.Deliver(ctx, id); err != nil {
						slog.Warn("notification delivery failed", "notification_id", id, "error", err)
					}
				})
			} else {
				d.scheduleRetry(id)
			}
			armed++
		}
	}
	if armed > 0 {
		slog.Info("notifications resumed", "count", armed)
	}
	return armed, nil
}

// Get returns a notification by id.
func (d *NotificationDispatcher) Get(ctx context.Context, id string) (*notification.Notification, error) {
	return d.store.GetNotification(ctx, id)
}

// NotifyWorkflowCompleted dispatches a workflow_completed notification.
func (d *NotificationDispatcher) NotifyWorkflowCompleted(ctx context.Context, workflowExecutionID, recipientType string, to notification.Recipient, summary string) (string, error) {
	if workflowExecutionID == "" {
		return "", fmt.Errorf("workflow_execution_id is required: %w", domain.ErrValidation)
	}
	return d.Dispatch(ctx, &notification.Notification{
		Type:          notification.TypeWorkflowCompleted,
		RecipientType: recipientType,
		Recipient:     to,
		Content: notification.Content{
			Subject:  "Workflow completed: " + workflowExecutionID,
			Message:  summary,
			Priority: notification.PriorityMedium,
		},
	})
}
