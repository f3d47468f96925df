package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationType distinguishes admin-facing alert kinds.
type NotificationType string

const (
	NotificationNewOrder       NotificationType = "new_order"
	NotificationHighValueOrder NotificationType = "high_value_order"
)

// NotificationPriority orders alerts in the admin console.
type NotificationPriority string

const (
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is an admin-facing alert derived from pipeline activity.
// Created by the dispatcher, mutated only by admin read-acknowledgement.
type Notification struct {
	ID       uuid.UUID
	Type     NotificationType
	Priority NotificationPriority
	Title    string
	Message  string

	// OrderID links the alert back to the order that produced it.
	OrderID uuid.UUID

	Read      bool
	CreatedAt time.Time
}

// ErrNotificationNotFound is returned for read-acknowledgement of an
// unknown notification.
var ErrNotificationNotFound = &Error{Code: ENOTFOUND, Message: "Notification not found"}

// NotificationService derives and manages admin alerts.
// Dispatch failures are isolated from the pipeline critical path: callers
// log and continue.
type NotificationService interface {
	// DispatchOrderNotifications emits a new_order alert for the order and,
	// above the high-value threshold, an additional high_value_order alert.
	DispatchOrderNotifications(ctx context.Context, order Order) error

	// ListNotifications returns recent notifications, newest first.
	ListNotifications(ctx context.Context, limit, offset int32) ([]Notification, error)

	// MarkNotificationRead acknowledges a notification.
	MarkNotificationRead(ctx context.Context, id uuid.UUID) error
}
