package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the payment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// FulfillmentStatus is the physical-shipping lifecycle of an order,
// independent of payment status.
type FulfillmentStatus string

const (
	FulfillmentUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentFulfilled   FulfillmentStatus = "fulfilled"
	FulfillmentDelivered   FulfillmentStatus = "delivered"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusDraft, OrderStatusPending, OrderStatusPaid, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a status transition is legal.
// Orders are created once and never move backwards: a paid order can only be
// cancelled, a cancelled order is terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case OrderStatusDraft:
		return next == OrderStatusPending || next == OrderStatusPaid || next == OrderStatusCancelled
	case OrderStatusPending:
		return next == OrderStatusPaid || next == OrderStatusCancelled
	case OrderStatusPaid:
		return next == OrderStatusCancelled
	}
	return false
}

// Valid reports whether f is a known fulfillment status.
func (f FulfillmentStatus) Valid() bool {
	switch f {
	case FulfillmentUnfulfilled, FulfillmentFulfilled, FulfillmentDelivered:
		return true
	}
	return false
}

// CanTransitionTo reports whether a fulfillment transition is legal.
// Fulfillment only moves forward.
func (f FulfillmentStatus) CanTransitionTo(next FulfillmentStatus) bool {
	if f == next {
		return true
	}
	switch f {
	case FulfillmentUnfulfilled:
		return next == FulfillmentFulfilled || next == FulfillmentDelivered
	case FulfillmentFulfilled:
		return next == FulfillmentDelivered
	}
	return false
}

// Order is one completed (or admin-created draft) purchase.
//
// TotalCents is always the processor-reported captured amount in minor
// units. The client's cart subtotal is display-only and never trusted for
// the final charge.
type Order struct {
	ID          uuid.UUID
	OrderNumber string

	// UserID is nil for guest checkout.
	UserID *uuid.UUID
	Email  string

	TotalCents int64
	Currency   string

	Status      OrderStatus
	Fulfillment FulfillmentStatus

	// ShippingAddress is nil when the customer provided no usable address.
	ShippingAddress *ShippingAddress

	DiscountCode  string
	DiscountCents int64

	// ProviderPaymentID is the processor's payment intent id. It is the
	// idempotency key for webhook redelivery: at most one order exists per
	// payment id. Empty for admin-created draft orders.
	ProviderPaymentID string

	// ProviderSessionID is the hosted checkout session id, when the order
	// came through the hosted flow.
	ProviderSessionID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is one product line of an order. Items are owned by their order,
// created atomically with it, and snapshot the catalog state at purchase
// time: name, price and image stay stable even if the product is later
// edited or deleted.
type OrderItem struct {
	ID      uuid.UUID
	OrderID uuid.UUID

	// ProductID is empty when the catalog entry no longer exists or the item
	// was never backed by one.
	ProductID string

	Name       string
	PriceCents int64
	Quantity   int32
	Image      string
}

// OrderDetail aggregates an order with its line items.
type OrderDetail struct {
	Order Order
	Items []OrderItem
}

// FormatAmount renders minor units as a major-unit decimal string,
// e.g. 129900 -> "1299.00". Negative amounts keep their sign.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Order-related domain errors.
var (
	ErrOrderNotFound           = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrPaymentAlreadyProcessed = &Error{Code: ECONFLICT, Message: "Payment already processed"}
	ErrOrderNotDraft           = &Error{Code: EFORBIDDEN, Message: "Only draft orders may be deleted"}
	ErrInvalidTransition       = &Error{Code: EINVALID, Message: "Illegal order status transition"}
	ErrMissingCartMetadata     = &Error{Code: EINVALID, Message: "Cart metadata missing or malformed on payment event"}
	ErrPaymentNotSucceeded     = &Error{Code: EPAYMENT, Message: "Payment has not succeeded"}
)

// PaymentEvent is a verified, parsed "payment completed" fact handed from
// the webhook ingestor to the order materializer. All fields originate from
// the payment processor, not the client.
type PaymentEvent struct {
	// EventID is the processor's event id, for logging and audit.
	EventID string

	// ProviderPaymentID is the payment intent id (dedup key).
	ProviderPaymentID string

	// ProviderSessionID is set for hosted checkout sessions.
	ProviderSessionID string

	// AmountCents is the captured amount in minor units (authoritative).
	AmountCents int64
	Currency    string

	Email        string
	CustomerName string

	// Shipping and Billing are the raw party facts; either may be nil.
	Shipping *PaymentParty
	Billing  *PaymentParty

	// Metadata is the processor-echoed metadata blob carrying the cart
	// snapshot. Attacker-reachable; decoded defensively.
	Metadata map[string]string

	OccurredAt time.Time
}

// OrderService is the order side of the reconciliation pipeline.
type OrderService interface {
	// MaterializeOrder turns a verified payment event into a durable Order
	// with its OrderItems, atomically and idempotently. The bool result is
	// false when the event was a redelivery and the existing order is
	// returned instead.
	MaterializeOrder(ctx context.Context, ev PaymentEvent) (*OrderDetail, bool, error)

	// CreateDraftOrder creates a manual/offline order in DRAFT status.
	CreateDraftOrder(ctx context.Context, params CreateDraftOrderParams) (*OrderDetail, error)

	// GetOrder retrieves a single order with items.
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)

	// ListOrders returns recent orders, newest first.
	ListOrders(ctx context.Context, limit, offset int32) ([]Order, error)

	// UpdateOrder applies status and/or fulfillment transitions,
	// validating legality.
	UpdateOrder(ctx context.Context, orderID uuid.UUID, params UpdateOrderParams) (*Order, error)

	// DeleteOrder removes an order. Restricted to DRAFT orders.
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
}

// CreateDraftOrderParams describes an admin-created manual order.
type CreateDraftOrderParams struct {
	Email           string
	UserID          *uuid.UUID
	Currency        string
	Items           []CartItem
	ShippingAddress *ShippingAddress
}

// UpdateOrderParams carries the mutable order fields. Nil means "leave as is".
type UpdateOrderParams struct {
	Status      *OrderStatus
	Fulfillment *FulfillmentStatus
}
