package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/rfontaine/atelier/internal/billing"
	"github.com/rfontaine/atelier/internal/domain"
)

// fakeOrderService records materialization calls and returns a canned order.
type fakeOrderService struct {
	events         []domain.PaymentEvent
	materializeErr error
	created        bool
}

func (f *fakeOrderService) MaterializeOrder(ctx context.Context, ev domain.PaymentEvent) (*domain.OrderDetail, bool, error) {
	f.events = append(f.events, ev)
	if f.materializeErr != nil {
		return nil, false, f.materializeErr
	}
	detail := &domain.OrderDetail{
		Order: domain.Order{
			ID:                uuid.New(),
			OrderNumber:       "ORD-20260115-AAAAAA",
			Email:             ev.Email,
			TotalCents:        ev.AmountCents,
			Currency:          ev.Currency,
			Status:            domain.OrderStatusPaid,
			ProviderPaymentID: ev.ProviderPaymentID,
		},
		Items: []domain.OrderItem{{Name: "Beans", PriceCents: 1850, Quantity: 1}},
	}
	return detail, f.created, nil
}

func (f *fakeOrderService) CreateDraftOrder(ctx context.Context, params domain.CreateDraftOrderParams) (*domain.OrderDetail, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeOrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.OrderDetail, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeOrderService) ListOrders(ctx context.Context, limit, offset int32) ([]domain.Order, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeOrderService) UpdateOrder(ctx context.Context, id uuid.UUID, params domain.UpdateOrderParams) (*domain.Order, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeOrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return errors.New("not implemented")
}

// fakeNotifier records dispatches and can be made to fail.
type fakeNotifier struct {
	dispatched []domain.Order
	err        error
}

func (f *fakeNotifier) DispatchOrderNotifications(ctx context.Context, order domain.Order) error {
	f.dispatched = append(f.dispatched, order)
	return f.err
}

func (f *fakeNotifier) ListNotifications(ctx context.Context, limit, offset int32) ([]domain.Notification, error) {
	return nil, nil
}

func (f *fakeNotifier) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	return nil
}

// fakeJobQueue records enqueued jobs and can be made to fail.
type fakeJobQueue struct {
	jobs []string
	err  error
}

func (f *fakeJobQueue) EnqueueJob(ctx context.Context, jobType, queue string, payload []byte) (*domain.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.jobs = append(f.jobs, jobType)
	return &domain.Job{ID: uuid.New(), JobType: jobType, Queue: queue, Payload: payload}, nil
}

func (f *fakeJobQueue) ClaimNextJob(ctx context.Context, workerID, queue string) (*domain.Job, error) {
	return nil, nil
}

func (f *fakeJobQueue) CompleteJob(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeJobQueue) FailJob(ctx context.Context, id uuid.UUID, errMsg string) error { return nil }

type testEnv struct {
	handler  *StripeHandler
	provider *billing.MockProvider
	orders   *fakeOrderService
	notifier *fakeNotifier
	queue    *fakeJobQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		provider: &billing.MockProvider{},
		orders:   &fakeOrderService{created: true},
		notifier: &fakeNotifier{},
		queue:    &fakeJobQueue{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.handler = NewStripeHandler(
		env.provider,
		env.orders,
		env.notifier,
		env.queue,
		StripeWebhookConfig{WebhookSecret: "whsec_test"},
		logger,
	)
	return env
}

func sessionEventJSON(t *testing.T, paymentStatus string) []byte {
	t.Helper()
	items := `[{"name":"Beans","price":1850,"quantity":1}]`
	raw := fmt.Sprintf(`{
		"id": "cs_test_123",
		"amount_total": 1850,
		"currency": "usd",
		"payment_status": %q,
		"payment_intent": "pi_test_123",
		"customer_details": {
			"email": "ana@example.com",
			"name": "Ana Reyes",
			"address": {"line1": "", "city": "Makati", "country": "PH"}
		},
		"collected_information": {
			"shipping_details": {
				"name": "Ana Reyes",
				"address": {
					"line1": "42 Ayala Ave",
					"city": "Makati",
					"postal_code": "1226",
					"country": "PH"
				}
			}
		},
		"metadata": {"items": %s}
	}`, paymentStatus, jsonString(items))
	return eventJSON(t, "checkout.session.completed", raw)
}

// jsonString wraps a raw string as a quoted JSON string literal.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func eventJSON(t *testing.T, eventType, objectRaw string) []byte {
	t.Helper()
	payload := fmt.Sprintf(`{
		"id": "evt_test_123",
		"type": %q,
		"created": 1767225600,
		"data": {"object": %s}
	}`, eventType, objectRaw)
	return []byte(payload)
}

func postWebhook(env *testEnv, payload []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=123,v1=abc")
	rec := httptest.NewRecorder()
	env.handler.HandleWebhook(rec, req)
	return rec
}

func TestHandleWebhook_CheckoutSessionCreatesOrder(t *testing.T) {
	env := newTestEnv(t)

	rec := postWebhook(env, sessionEventJSON(t, "paid"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if len(env.orders.events) != 1 {
		t.Fatalf("materialize calls = %d, want 1", len(env.orders.events))
	}

	ev := env.orders.events[0]
	if ev.ProviderPaymentID != "pi_test_123" {
		t.Errorf("ProviderPaymentID = %q, want %q", ev.ProviderPaymentID, "pi_test_123")
	}
	if ev.ProviderSessionID != "cs_test_123" {
		t.Errorf("ProviderSessionID = %q, want %q", ev.ProviderSessionID, "cs_test_123")
	}
	if ev.AmountCents != 1850 {
		t.Errorf("AmountCents = %d, want 1850", ev.AmountCents)
	}
	if ev.Email != "ana@example.com" {
		t.Errorf("Email = %q, want ana@example.com", ev.Email)
	}
	if ev.Shipping == nil || ev.Shipping.Address.Line1 != "42 Ayala Ave" {
		t.Errorf("shipping address not decoded from collected_information: %+v", ev.Shipping)
	}
	if _, ok := ev.Metadata["items"]; !ok {
		t.Error("items metadata not carried on payment event")
	}

	if len(env.notifier.dispatched) != 1 {
		t.Errorf("notifications dispatched = %d, want 1", len(env.notifier.dispatched))
	}
	if len(env.queue.jobs) != 1 {
		t.Errorf("jobs enqueued = %d, want 1", len(env.queue.jobs))
	}
}

func TestHandleWebhook_UnpaidSessionIsAcknowledged(t *testing.T) {
	env := newTestEnv(t)

	rec := postWebhook(env, sessionEventJSON(t, "unpaid"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(env.orders.events) != 0 {
		t.Errorf("materialize calls = %d, want 0", len(env.orders.events))
	}
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	env := newTestEnv(t)
	env.provider.VerifyWebhookSignatureFunc = func(payload []byte, signature, secret string) error {
		return billing.ErrInvalidWebhookSignature
	}

	rec := postWebhook(env, sessionEventJSON(t, "paid"))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if len(env.orders.events) != 0 {
		t.Errorf("materialize calls = %d, want 0", len(env.orders.events))
	}
}

func TestHandleWebhook_OversizeBodyRejected(t *testing.T) {
	env := newTestEnv(t)
	verified := false
	env.provider.VerifyWebhookSignatureFunc = func(payload []byte, signature, secret string) error {
		verified = true
		return nil
	}

	rec := postWebhook(env, bytes.Repeat([]byte("a"), maxWebhookBody+1))

	// An oversize body is rejected as such, not truncated into a payload
	// that fails signature verification and looks like a forgery.
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
	if verified {
		t.Error("signature verification should not run on an oversize body")
	}
	if len(env.orders.events) != 0 {
		t.Errorf("materialize calls = %d, want 0", len(env.orders.events))
	}
}

func TestHandleWebhook_RejectsNonPOST(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/stripe", nil)
	rec := httptest.NewRecorder()
	env.handler.HandleWebhook(rec, req)

	if rec.Code == http.StatusOK {
		t.Fatalf("GET accepted with status %d", rec.Code)
	}
}

func TestHandleWebhook_StorageFailureReturns500(t *testing.T) {
	env := newTestEnv(t)
	env.orders.materializeErr = domain.Internal(errors.New("connection refused"), "order.materialize", "db down")

	rec := postWebhook(env, sessionEventJSON(t, "paid"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestHandleWebhook_MalformedEventIsAcknowledged(t *testing.T) {
	env := newTestEnv(t)
	env.orders.materializeErr = domain.ErrMissingCartMetadata

	rec := postWebhook(env, sessionEventJSON(t, "paid"))

	// A redelivery cannot repair bad metadata, so Stripe gets a 200.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleWebhook_SideEffectFailuresStillAck(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = errors.New("notification store down")
	env.queue.err = errors.New("queue down")

	rec := postWebhook(env, sessionEventJSON(t, "paid"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(env.orders.events) != 1 {
		t.Errorf("materialize calls = %d, want 1", len(env.orders.events))
	}
}

func TestHandleWebhook_RedeliveredEventSkipsSideEffects(t *testing.T) {
	env := newTestEnv(t)
	env.orders.created = false

	rec := postWebhook(env, sessionEventJSON(t, "paid"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(env.notifier.dispatched) != 0 {
		t.Errorf("notifications dispatched = %d, want 0 on redelivery", len(env.notifier.dispatched))
	}
	if len(env.queue.jobs) != 0 {
		t.Errorf("jobs enqueued = %d, want 0 on redelivery", len(env.queue.jobs))
	}
}

func TestHandleWebhook_PaymentIntentWithoutMetadataSkipped(t *testing.T) {
	env := newTestEnv(t)

	raw := `{
		"id": "pi_test_456",
		"amount": 5000,
		"amount_received": 5000,
		"currency": "usd",
		"receipt_email": "ana@example.com",
		"metadata": {}
	}`
	rec := postWebhook(env, eventJSON(t, "payment_intent.succeeded", raw))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(env.orders.events) != 0 {
		t.Errorf("materialize calls = %d, want 0", len(env.orders.events))
	}
}

func TestHandleWebhook_PaymentIntentSucceeded(t *testing.T) {
	env := newTestEnv(t)

	raw := `{
		"id": "pi_test_789",
		"amount": 8200,
		"amount_received": 8200,
		"currency": "usd",
		"receipt_email": "ana@example.com",
		"shipping": {
			"name": "Ana Reyes",
			"address": {"line1": "42 Ayala Ave", "city": "Makati", "country": "PH"}
		},
		"metadata": {"items": "[{\"name\":\"Beans\",\"price\":1850,\"quantity\":2}]"}
	}`
	rec := postWebhook(env, eventJSON(t, "payment_intent.succeeded", raw))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if len(env.orders.events) != 1 {
		t.Fatalf("materialize calls = %d, want 1", len(env.orders.events))
	}

	ev := env.orders.events[0]
	if ev.ProviderPaymentID != "pi_test_789" {
		t.Errorf("ProviderPaymentID = %q, want pi_test_789", ev.ProviderPaymentID)
	}
	if ev.AmountCents != 8200 {
		t.Errorf("AmountCents = %d, want 8200", ev.AmountCents)
	}
	if ev.Shipping == nil || ev.Shipping.Name != "Ana Reyes" {
		t.Errorf("shipping not decoded: %+v", ev.Shipping)
	}
}

func TestHandleWebhook_IgnoresUnknownEventType(t *testing.T) {
	env := newTestEnv(t)

	rec := postWebhook(env, eventJSON(t, "invoice.paid", `{"id": "in_test_1"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(env.orders.events) != 0 {
		t.Errorf("materialize calls = %d, want 0", len(env.orders.events))
	}
}
