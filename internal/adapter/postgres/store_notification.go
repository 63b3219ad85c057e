package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/devteam/internal/domain/notification"
)

const notificationColumns = `id, type, recipient_type, recipient, content, status, channel,
	attempts, max_attempts, last_error, created_at, sent_at`

func (s *Store) CreateNotification(ctx context.Context, n *notification.Notification) error {
	recipient, content, err := marshalNotification(n)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO notifications (`+notificationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		n.ID, n.Type, n.RecipientType, recipient, content, n.Status, n.Channel,
		n.Attempts, n.MaxAttempts, n.LastError, n.CreatedAt, n.SentAt)
	if err != nil {
		return wrapf(err, "create notification %s", n.ID)
	}
	return nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*notification.Notification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		return nil, wrapf(err, "get notification %s", id)
	}
	return n, nil
}

func (s *Store) UpdateNotification(ctx context.Context, n *notification.Notification) error {
	recipient, content, err := marshalNotification(n)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE notifications
		 SET recipient = $2, content = $3, status = $4, channel = $5, attempts = $6,
		     max_attempts = $7, last_error = $8, sent_at = $9
		 WHERE id = $1`,
		n.ID, recipient, content, n.Status, n.Channel, n.Attempts, n.MaxAttempts, n.LastError, n.SentAt)
	return expectOneRow(tag, err, "update notification %s", n.ID)
}

// ListNotifications returns notifications with the given status, or all of
// them when status is empty, oldest first.
func (s *Store) ListNotifications(ctx context.Context, status notification.Status) ([]notification.Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at, id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func marshalNotification(n *notification.Notification) (recipient, content []byte, err error) {
	if recipient, err = json.Marshal(n.Recipient); err != nil {
		return nil, nil, fmt.Errorf("marshal recipient: %w", err)
	}
	if content, err = json.Marshal(n.Content); err != nil {
		return nil, nil, fmt.Errorf("marshal notification content: %w", err)
	}
	return recipient, content, nil
}

func scanNotification(row scannable) (*notification.Notification, error) {
	var (
		n                  notification.Notification
		recipient, content []byte
	)
	err := row.Scan(&n.ID, &n.Type, &n.RecipientType, &recipient, &content, &n.Status, &n.Channel,
		&n.Attempts, &n.MaxAttempts, &n.LastError, &n.CreatedAt, &n.SentAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(recipient, &n.Recipient); err != nil {
		return nil, fmt.Errorf("unmarshal recipient: %w", err)
	}
	if err := json.Unmarshal(content, &n.Content); err != nil {
		return nil, fmt.Errorf("unmarshal notification content: %w", err)
	}
	return &n, nil
}
