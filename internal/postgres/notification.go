package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rfontaine/atelier/internal/domain"
)

// Compile-time check to ensure Store implements domain.NotificationStore.
var _ domain.NotificationStore = (*Store)(nil)

// CreateNotification inserts an admin notification.
func (s *Store) CreateNotification(ctx context.Context, n domain.Notification) (*domain.Notification, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, type, priority, title, message, order_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		n.ID, n.Type, n.Priority, n.Title, n.Message, n.OrderID).
		Scan(&n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	return &n, nil
}

// ListNotifications returns notifications newest first.
func (s *Store) ListNotifications(ctx context.Context, limit, offset int32) ([]domain.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, priority, title, message, order_id, read, created_at
		FROM notifications
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		var n domain.Notification
		err := rows.Scan(&n.ID, &n.Type, &n.Priority, &n.Title, &n.Message,
			&n.OrderID, &n.Read, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead acknowledges a notification.
func (s *Store) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET read = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}
