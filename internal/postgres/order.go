package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rfontaine/atelier/internal/domain"
)

// Compile-time check to ensure Store implements domain.OrderStore.
var _ domain.OrderStore = (*Store)(nil)

const orderColumns = `id, order_number, user_id, email, total_cents, currency, status,
	fulfillment, ship_name, ship_line1, ship_line2, ship_city, ship_state,
	ship_postal_code, ship_country, discount_code, discount_cents,
	provider_payment_id, provider_session_id, created_at, updated_at`

// CreateOrderWithItems inserts an order and its items in one transaction.
// The insert is idempotent on provider_payment_id: when a row for the same
// payment already exists (webhook redelivery, or two deliveries racing), the
// existing order is returned with created=false.
func (s *Store) CreateOrderWithItems(ctx context.Context, order domain.Order, items []domain.OrderItem) (*domain.OrderDetail, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var ship domain.ShippingAddress
	if order.ShippingAddress != nil {
		ship = *order.ShippingAddress
	}

	var insertedID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, email, total_cents, currency, status,
			fulfillment, ship_name, ship_line1, ship_line2, ship_city,
			ship_state, ship_postal_code, ship_country, discount_code,
			discount_cents, provider_payment_id, provider_session_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (provider_payment_id) DO NOTHING
		RETURNING id`,
		order.ID, order.OrderNumber, order.UserID, order.Email,
		order.TotalCents, order.Currency, order.Status, order.Fulfillment,
		textOrNull(ship.Name), textOrNull(ship.Line1), textOrNull(ship.Line2),
		textOrNull(ship.City), textOrNull(ship.State), textOrNull(ship.PostalCode),
		textOrNull(ship.Country), textOrNull(order.DiscountCode), order.DiscountCents,
		textOrNull(order.ProviderPaymentID), textOrNull(order.ProviderSessionID),
	).Scan(&insertedID)

	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict path: another delivery of this payment won the insert.
		tx.Rollback(ctx)
		existing, lookupErr := s.GetOrderByProviderPaymentID(ctx, order.ProviderPaymentID)
		if lookupErr != nil {
			return nil, false, fmt.Errorf("order exists for payment %s but lookup failed: %w", order.ProviderPaymentID, lookupErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range items {
		items[i].OrderID = insertedID
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, name, price_cents, quantity, image)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			items[i].ID, items[i].OrderID, textOrNull(items[i].ProductID),
			items[i].Name, items[i].PriceCents, items[i].Quantity,
			textOrNull(items[i].Image),
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit order: %w", err)
	}

	detail, err := s.GetOrder(ctx, insertedID)
	if err != nil {
		return nil, false, err
	}
	return detail, true, nil
}

// GetOrder retrieves a single order with its items.
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*domain.OrderDetail, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return s.scanOrderDetail(ctx, row)
}

// GetOrderByProviderPaymentID retrieves an order by its payment intent id.
func (s *Store) GetOrderByProviderPaymentID(ctx context.Context, providerPaymentID string) (*domain.OrderDetail, error) {
	if providerPaymentID == "" {
		return nil, domain.ErrOrderNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE provider_payment_id = $1`, providerPaymentID)
	return s.scanOrderDetail(ctx, row)
}

// ListOrders returns orders newest first.
func (s *Store) ListOrders(ctx context.Context, limit, offset int32) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// UpdateOrder sets the status and fulfillment columns. Transition legality
// is the service layer's concern.
func (s *Store) UpdateOrder(ctx context.Context, id uuid.UUID, status domain.OrderStatus, fulfillment domain.FulfillmentStatus) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE orders
		SET status = $2, fulfillment = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, id, status, fulfillment)

	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	return order, nil
}

// DeleteOrder removes an order; items cascade.
func (s *Store) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (s *Store) scanOrderDetail(ctx context.Context, row pgx.Row) (*domain.OrderDetail, error) {
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	items, err := s.listOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &domain.OrderDetail{Order: *order, Items: items}, nil
}

func (s *Store) listOrderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_id, name, price_cents, quantity, image
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		var productID, image pgtype.Text
		if err := rows.Scan(&it.ID, &it.OrderID, &productID, &it.Name, &it.PriceCents, &it.Quantity, &image); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		it.ProductID = textValue(productID)
		it.Image = textValue(image)
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var userID pgtype.UUID
	var shipName, shipLine1, shipLine2, shipCity, shipState, shipPostal, shipCountry pgtype.Text
	var discountCode, paymentID, sessionID pgtype.Text

	err := row.Scan(
		&o.ID, &o.OrderNumber, &userID, &o.Email, &o.TotalCents, &o.Currency,
		&o.Status, &o.Fulfillment, &shipName, &shipLine1, &shipLine2,
		&shipCity, &shipState, &shipPostal, &shipCountry, &discountCode,
		&o.DiscountCents, &paymentID, &sessionID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		id := uuid.UUID(userID.Bytes)
		o.UserID = &id
	}
	if shipLine1.Valid {
		o.ShippingAddress = &domain.ShippingAddress{
			Name:       textValue(shipName),
			Line1:      textValue(shipLine1),
			Line2:      textValue(shipLine2),
			City:       textValue(shipCity),
			State:      textValue(shipState),
			PostalCode: textValue(shipPostal),
			Country:    textValue(shipCountry),
		}
	}
	o.DiscountCode = textValue(discountCode)
	o.ProviderPaymentID = textValue(paymentID)
	o.ProviderSessionID = textValue(sessionID)

	return &o, nil
}
