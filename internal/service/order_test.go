package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfontaine/atelier/internal/domain"
)

func paidEvent(paymentID string) domain.PaymentEvent {
	md, _ := domain.EncodeCartMetadata(testCart(), nil)
	return domain.PaymentEvent{
		EventID:           "evt_" + paymentID,
		ProviderPaymentID: paymentID,
		AmountCents:       8200,
		Currency:          "USD",
		Email:             "ana@example.com",
		CustomerName:      "Ana Reyes",
		Shipping: &domain.PaymentParty{
			Name: "Ana Reyes",
			Address: domain.ShippingAddress{
				Line1:      "42 Ayala Ave",
				City:       "Makati",
				PostalCode: "1226",
				Country:    "Philippines",
			},
		},
		Metadata:   md,
		OccurredAt: time.Now(),
	}
}

func TestMaterializeOrder_CreatesPaidOrder(t *testing.T) {
	store := newMemOrderStore()
	svc := NewOrderService(store, "PH", testLogger())

	detail, created, err := svc.MaterializeOrder(context.Background(), paidEvent("pi_100"))
	require.NoError(t, err)
	require.True(t, created)

	assert.Equal(t, domain.OrderStatusPaid, detail.Order.Status)
	assert.Equal(t, domain.FulfillmentUnfulfilled, detail.Order.Fulfillment)
	// The total is the processor-captured amount, not the cart sum.
	assert.Equal(t, int64(8200), detail.Order.TotalCents)
	assert.Equal(t, "usd", detail.Order.Currency)
	assert.Equal(t, "pi_100", detail.Order.ProviderPaymentID)
	assert.Len(t, detail.Items, 2)
	assert.NotEmpty(t, detail.Order.OrderNumber)

	require.NotNil(t, detail.Order.ShippingAddress)
	assert.Equal(t, "Ana Reyes", detail.Order.ShippingAddress.Name)
	assert.Equal(t, "PH", detail.Order.ShippingAddress.Country)
}

func TestMaterializeOrder_RedeliveryReturnsExistingOrder(t *testing.T) {
	store := newMemOrderStore()
	svc := NewOrderService(store, "PH", testLogger())

	first, created, err := svc.MaterializeOrder(context.Background(), paidEvent("pi_dup"))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.MaterializeOrder(context.Background(), paidEvent("pi_dup"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Order.ID, second.Order.ID)

	orders, err := store.ListOrders(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestMaterializeOrder_MissingMetadata(t *testing.T) {
	svc := NewOrderService(newMemOrderStore(), "PH", testLogger())

	ev := paidEvent("pi_bad")
	ev.Metadata = map[string]string{}

	_, _, err := svc.MaterializeOrder(context.Background(), ev)
	assert.ErrorIs(t, err, domain.ErrMissingCartMetadata)
}

func TestMaterializeOrder_BlankCountryStaysBlank(t *testing.T) {
	svc := NewOrderService(newMemOrderStore(), "PH", testLogger())

	ev := paidEvent("pi_nocountry")
	ev.Shipping.Address.Country = ""

	detail, _, err := svc.MaterializeOrder(context.Background(), ev)
	require.NoError(t, err)
	require.NotNil(t, detail.Order.ShippingAddress)
	// The processor sent no country; the deployment default must not be
	// fabricated into the stored address.
	assert.Empty(t, detail.Order.ShippingAddress.Country)
}

func TestMaterializeOrder_NoUsableAddress(t *testing.T) {
	svc := NewOrderService(newMemOrderStore(), "PH", testLogger())

	ev := paidEvent("pi_noaddr")
	// City without a street line is not a usable address.
	ev.Shipping = &domain.PaymentParty{Name: "Ana", Address: domain.ShippingAddress{City: "Makati"}}
	ev.Billing = nil

	detail, _, err := svc.MaterializeOrder(context.Background(), ev)
	require.NoError(t, err)
	assert.Nil(t, detail.Order.ShippingAddress)
}

func TestCreateDraftOrder(t *testing.T) {
	store := newMemOrderStore()
	svc := NewOrderService(store, "PH", testLogger())

	detail, err := svc.CreateDraftOrder(context.Background(), domain.CreateDraftOrderParams{
		Email: "phone-order@example.com",
		Items: testCart(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusDraft, detail.Order.Status)
	assert.Equal(t, int64(8200), detail.Order.TotalCents)
	assert.Empty(t, detail.Order.ProviderPaymentID)

	_, err = svc.CreateDraftOrder(context.Background(), domain.CreateDraftOrderParams{Email: "x@example.com"})
	assert.ErrorIs(t, err, domain.ErrCartEmpty)
}

func TestUpdateOrder_Transitions(t *testing.T) {
	store := newMemOrderStore()
	svc := NewOrderService(store, "PH", testLogger())

	detail, _, err := svc.MaterializeOrder(context.Background(), paidEvent("pi_up"))
	require.NoError(t, err)
	id := detail.Order.ID

	fulfilled := domain.FulfillmentFulfilled
	updated, err := svc.UpdateOrder(context.Background(), id, domain.UpdateOrderParams{Fulfillment: &fulfilled})
	require.NoError(t, err)
	assert.Equal(t, domain.FulfillmentFulfilled, updated.Fulfillment)

	// Paid orders cannot go back to pending.
	pending := domain.OrderStatusPending
	_, err = svc.UpdateOrder(context.Background(), id, domain.UpdateOrderParams{Status: &pending})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Cancelling a paid order is allowed; cancelled is terminal.
	cancelled := domain.OrderStatusCancelled
	_, err = svc.UpdateOrder(context.Background(), id, domain.UpdateOrderParams{Status: &cancelled})
	require.NoError(t, err)

	paid := domain.OrderStatusPaid
	_, err = svc.UpdateOrder(context.Background(), id, domain.UpdateOrderParams{Status: &paid})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestDeleteOrder_DraftOnly(t *testing.T) {
	store := newMemOrderStore()
	svc := NewOrderService(store, "PH", testLogger())

	draft, err := svc.CreateDraftOrder(context.Background(), domain.CreateDraftOrderParams{
		Email: "x@example.com",
		Items: testCart(),
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteOrder(context.Background(), draft.Order.ID))

	paid, _, err := svc.MaterializeOrder(context.Background(), paidEvent("pi_del"))
	require.NoError(t, err)

	err = svc.DeleteOrder(context.Background(), paid.Order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotDraft)

	err = svc.DeleteOrder(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
