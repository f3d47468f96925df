package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rfontaine/atelier/internal/address"
	"github.com/rfontaine/atelier/internal/domain"
	"github.com/rfontaine/atelier/internal/telemetry"
)

type orderService struct {
	store          domain.OrderStore
	defaultCountry string
	logger         *slog.Logger
}

// NewOrderService creates a new OrderService instance.
func NewOrderService(store domain.OrderStore, defaultCountry string, logger *slog.Logger) domain.OrderService {
	if defaultCountry == "" {
		defaultCountry = "PH"
	}
	return &orderService{
		store:          store,
		defaultCountry: defaultCountry,
		logger:         logger.With("service", "order"),
	}
}

// MaterializeOrder turns a verified payment event into a durable order.
// Safe to call repeatedly for the same payment: the store's idempotent
// insert returns the existing order with created=false on redelivery.
func (s *orderService) MaterializeOrder(ctx context.Context, ev domain.PaymentEvent) (*domain.OrderDetail, bool, error) {
	const op = "OrderService.MaterializeOrder"

	if ev.ProviderPaymentID == "" {
		return nil, false, domain.Invalid(op, "payment event has no payment id")
	}

	cartItems, userID, err := domain.DecodeCartMetadata(ev.Metadata)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	resolved := address.Resolve(ev.Shipping, ev.Billing)

	var shippingAddr *domain.ShippingAddress
	if resolved.Provided {
		addr := resolved.Address
		addr.Name = resolved.Name
		// The processor returns ISO codes already; normalize only what it
		// actually sent. A blank country stays blank rather than being
		// fabricated from the deployment default.
		if addr.Country != "" {
			addr.Country = address.NormalizeCountry(addr.Country, s.defaultCountry)
		}
		shippingAddr = &addr
	}

	order := domain.Order{
		ID:                uuid.New(),
		OrderNumber:       generateOrderNumber(),
		UserID:            userID,
		Email:             ev.Email,
		TotalCents:        ev.AmountCents,
		Currency:          strings.ToLower(ev.Currency),
		Status:            domain.OrderStatusPaid,
		Fulfillment:       domain.FulfillmentUnfulfilled,
		ShippingAddress:   shippingAddr,
		ProviderPaymentID: ev.ProviderPaymentID,
		ProviderSessionID: ev.ProviderSessionID,
	}

	items := make([]domain.OrderItem, len(cartItems))
	for i, ci := range cartItems {
		items[i] = domain.OrderItem{
			ID:         uuid.New(),
			OrderID:    order.ID,
			ProductID:  ci.ProductID,
			Name:       ci.Name,
			PriceCents: ci.PriceCents,
			Quantity:   ci.Quantity,
			Image:      ci.Image,
		}
	}

	detail, created, err := s.store.CreateOrderWithItems(ctx, order, items)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	if !created {
		s.logger.Info("payment event redelivered, order already exists",
			"event_id", ev.EventID,
			"payment_id", ev.ProviderPaymentID,
			"order_id", detail.Order.ID)
		return detail, false, nil
	}

	telemetry.RecordOrderCreated("webhook", detail.Order.TotalCents, len(detail.Items))
	s.logger.Info("order materialized",
		"order_id", detail.Order.ID,
		"order_number", detail.Order.OrderNumber,
		"payment_id", ev.ProviderPaymentID,
		"total_cents", detail.Order.TotalCents,
		"items", len(detail.Items))

	return detail, true, nil
}

// CreateDraftOrder creates a manual order in DRAFT status. The total is
// computed from the given lines since there is no processor charge yet.
func (s *orderService) CreateDraftOrder(ctx context.Context, params domain.CreateDraftOrderParams) (*domain.OrderDetail, error) {
	const op = "OrderService.CreateDraftOrder"

	if len(params.Items) == 0 {
		return nil, domain.ErrCartEmpty
	}
	if params.Email == "" {
		return nil, domain.Invalid(op, "email is required")
	}

	currency := strings.ToLower(params.Currency)
	if currency == "" {
		currency = "usd"
	}

	var total int64
	for _, it := range params.Items {
		if it.Quantity <= 0 || it.PriceCents < 0 || it.Name == "" {
			return nil, domain.Invalid(op, "invalid order line")
		}
		total += it.PriceCents * int64(it.Quantity)
	}

	var shippingAddr *domain.ShippingAddress
	if params.ShippingAddress != nil && params.ShippingAddress.Provided() {
		addr := *params.ShippingAddress
		addr.Country = address.NormalizeCountry(addr.Country, s.defaultCountry)
		shippingAddr = &addr
	}

	order := domain.Order{
		ID:              uuid.New(),
		OrderNumber:     generateOrderNumber(),
		UserID:          params.UserID,
		Email:           params.Email,
		TotalCents:      total,
		Currency:        currency,
		Status:          domain.OrderStatusDraft,
		Fulfillment:     domain.FulfillmentUnfulfilled,
		ShippingAddress: shippingAddr,
	}

	items := make([]domain.OrderItem, len(params.Items))
	for i, ci := range params.Items {
		items[i] = domain.OrderItem{
			ID:         uuid.New(),
			OrderID:    order.ID,
			ProductID:  ci.ProductID,
			Name:       ci.Name,
			PriceCents: ci.PriceCents,
			Quantity:   ci.Quantity,
			Image:      ci.Image,
		}
	}

	detail, _, err := s.store.CreateOrderWithItems(ctx, order, items)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	telemetry.RecordOrderCreated("admin", detail.Order.TotalCents, len(detail.Items))
	s.logger.Info("draft order created",
		"order_id", detail.Order.ID,
		"order_number", detail.Order.OrderNumber)

	return detail, nil
}

// GetOrder retrieves a single order with items.
func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.OrderDetail, error) {
	return s.store.GetOrder(ctx, orderID)
}

// ListOrders returns recent orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, limit, offset int32) ([]domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListOrders(ctx, limit, offset)
}

// UpdateOrder applies status and fulfillment transitions after validating
// them against the current state.
func (s *orderService) UpdateOrder(ctx context.Context, orderID uuid.UUID, params domain.UpdateOrderParams) (*domain.Order, error) {
	const op = "OrderService.UpdateOrder"

	current, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	status := current.Order.Status
	if params.Status != nil {
		next := *params.Status
		if !next.Valid() {
			return nil, domain.Invalid(op, fmt.Sprintf("unknown order status %q", next))
		}
		if !status.CanTransitionTo(next) {
			return nil, fmt.Errorf("%s: %s -> %s: %w", op, status, next, domain.ErrInvalidTransition)
		}
		status = next
	}

	fulfillment := current.Order.Fulfillment
	if params.Fulfillment != nil {
		next := *params.Fulfillment
		if !next.Valid() {
			return nil, domain.Invalid(op, fmt.Sprintf("unknown fulfillment status %q", next))
		}
		if !fulfillment.CanTransitionTo(next) {
			return nil, fmt.Errorf("%s: %s -> %s: %w", op, fulfillment, next, domain.ErrInvalidTransition)
		}
		fulfillment = next
	}

	updated, err := s.store.UpdateOrder(ctx, orderID, status, fulfillment)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("order updated",
		"order_id", orderID,
		"status", status,
		"fulfillment", fulfillment)

	return updated, nil
}

// DeleteOrder removes an order. Only draft orders may be deleted; paid
// orders are part of the financial record and can only be cancelled.
func (s *orderService) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	const op = "OrderService.DeleteOrder"

	current, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if current.Order.Status != domain.OrderStatusDraft {
		return fmt.Errorf("%s: %w", op, domain.ErrOrderNotDraft)
	}

	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("draft order deleted", "order_id", orderID)
	return nil
}

// generateOrderNumber produces a human-readable order reference like
// ORD-20260115-7F3A2B. Uniqueness is enforced by the database column, the
// random suffix just makes collisions within a day vanishingly unlikely.
func generateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}
