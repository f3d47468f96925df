package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rfontaine/atelier/internal/domain"
)

// memOrderStore is an in-memory OrderStore with the same idempotency
// contract as the Postgres implementation.
type memOrderStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.OrderDetail

	createErr error
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: map[uuid.UUID]*domain.OrderDetail{}}
}

func (m *memOrderStore) CreateOrderWithItems(ctx context.Context, order domain.Order, items []domain.OrderItem) (*domain.OrderDetail, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return nil, false, m.createErr
	}

	if order.ProviderPaymentID != "" {
		for _, d := range m.orders {
			if d.Order.ProviderPaymentID == order.ProviderPaymentID {
				return d, false, nil
			}
		}
	}

	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	detail := &domain.OrderDetail{Order: order, Items: items}
	m.orders[order.ID] = detail
	return detail, true, nil
}

func (m *memOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (*domain.OrderDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return d, nil
}

func (m *memOrderStore) GetOrderByProviderPaymentID(ctx context.Context, providerPaymentID string) (*domain.OrderDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.orders {
		if d.Order.ProviderPaymentID == providerPaymentID {
			return d, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *memOrderStore) ListOrders(ctx context.Context, limit, offset int32) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.orders))
	for _, d := range m.orders {
		out = append(out, d.Order)
	}
	return out, nil
}

func (m *memOrderStore) UpdateOrder(ctx context.Context, id uuid.UUID, status domain.OrderStatus, fulfillment domain.FulfillmentStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	d.Order.Status = status
	d.Order.Fulfillment = fulfillment
	d.Order.UpdatedAt = time.Now()
	o := d.Order
	return &o, nil
}

func (m *memOrderStore) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(m.orders, id)
	return nil
}

// memNotificationStore is an in-memory NotificationStore.
type memNotificationStore struct {
	mu            sync.Mutex
	notifications []domain.Notification

	createErr error
}

func (m *memNotificationStore) CreateNotification(ctx context.Context, n domain.Notification) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	n.CreatedAt = time.Now()
	m.notifications = append(m.notifications, n)
	return &n, nil
}

func (m *memNotificationStore) ListNotifications(ctx context.Context, limit, offset int32) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Notification, len(m.notifications))
	copy(out, m.notifications)
	return out, nil
}

func (m *memNotificationStore) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notifications {
		if m.notifications[i].ID == id {
			m.notifications[i].Read = true
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

// memIdentityStore is an in-memory IdentityStore.
type memIdentityStore struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*domain.Customer
	addresses map[uuid.UUID][]domain.CustomerAddress

	setProviderCalls int
	setProviderErr   error
}

func newMemIdentityStore() *memIdentityStore {
	return &memIdentityStore{
		customers: map[uuid.UUID]*domain.Customer{},
		addresses: map[uuid.UUID][]domain.CustomerAddress{},
	}
}

func (m *memIdentityStore) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memIdentityStore) ListCustomerAddresses(ctx context.Context, userID uuid.UUID) ([]domain.CustomerAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addresses[userID], nil
}

func (m *memIdentityStore) SetProviderCustomerID(ctx context.Context, userID uuid.UUID, providerCustomerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setProviderCalls++
	if m.setProviderErr != nil {
		return m.setProviderErr
	}
	if c, ok := m.customers[userID]; ok {
		c.ProviderCustomerID = providerCustomerID
	}
	return nil
}
