package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OrderStore persists orders and their items.
//
// CreateOrderWithItems is the pipeline's single atomic write: the order
// header and all items commit in one transaction, and the write is
// idempotent on Order.ProviderPaymentID — redelivering the same payment
// event returns the previously created order with created=false instead of
// inserting a duplicate.
type OrderStore interface {
	CreateOrderWithItems(ctx context.Context, order Order, items []OrderItem) (*OrderDetail, bool, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*OrderDetail, error)
	GetOrderByProviderPaymentID(ctx context.Context, providerPaymentID string) (*OrderDetail, error)
	ListOrders(ctx context.Context, limit, offset int32) ([]Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, status OrderStatus, fulfillment FulfillmentStatus) (*Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

// NotificationStore persists admin notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n Notification) (*Notification, error)
	ListNotifications(ctx context.Context, limit, offset int32) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID) error
}

// IdentityStore is the pipeline's narrow view of customer accounts.
// The wider account system (registration, auth, profiles) lives outside the
// pipeline and is treated as an external collaborator.
type IdentityStore interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error)
	ListCustomerAddresses(ctx context.Context, userID uuid.UUID) ([]CustomerAddress, error)

	// SetProviderCustomerID records the processor customer id created for a
	// user so later checkouts reuse it.
	SetProviderCustomerID(ctx context.Context, userID uuid.UUID, providerCustomerID string) error
}

// Job is one queued unit of background work (e.g. a receipt email).
type Job struct {
	ID         uuid.UUID
	JobType    string
	Queue      string
	Payload    []byte
	RetryCount int32
	MaxRetries int32
	RunAt      time.Time
	CreatedAt  time.Time
}

// JobQueue enqueues and claims background jobs. Claiming is safe under
// concurrent workers (FOR UPDATE SKIP LOCKED in the Postgres implementation).
type JobQueue interface {
	EnqueueJob(ctx context.Context, jobType, queue string, payload []byte) (*Job, error)
	ClaimNextJob(ctx context.Context, workerID, queue string) (*Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID) error
	FailJob(ctx context.Context, id uuid.UUID, errMsg string) error
}
