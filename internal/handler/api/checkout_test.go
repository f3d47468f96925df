package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rfontaine/atelier/internal/billing"
	"github.com/rfontaine/atelier/internal/service"
)

// fakeCheckoutService returns canned results and records params.
type fakeCheckoutService struct {
	sessionParams []service.CheckoutParams
	intentParams  []service.CheckoutParams
	err           error
}

func (f *fakeCheckoutService) CreateCheckoutSession(ctx context.Context, params service.CheckoutParams) (*billing.CheckoutSession, error) {
	f.sessionParams = append(f.sessionParams, params)
	if f.err != nil {
		return nil, f.err
	}
	return &billing.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/pay/cs_test_1"}, nil
}

func (f *fakeCheckoutService) CreatePaymentIntent(ctx context.Context, params service.CheckoutParams) (*billing.PaymentIntent, error) {
	f.intentParams = append(f.intentParams, params)
	if f.err != nil {
		return nil, f.err
	}
	return &billing.PaymentIntent{ID: "pi_test_1", ClientSecret: "pi_test_1_secret", AmountCents: 8200}, nil
}

func newCheckoutHandler(svc service.CheckoutService) *CheckoutHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCheckoutHandler(svc, logger)
}

func postJSON(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

const validCheckoutBody = `{
	"items": [
		{"id": "prod_1", "name": "Beans", "price": 1850, "quantity": 2},
		{"name": "Grinder", "price": 4500, "quantity": 1}
	],
	"email": "ana@example.com",
	"idempotency_key": "idem-123"
}`

func TestCreateCheckoutSession(t *testing.T) {
	svc := &fakeCheckoutService{}
	h := newCheckoutHandler(svc)

	rec := postJSON(h.CreateCheckoutSession, "/api/checkout", validCheckoutBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "cs_test_1" {
		t.Errorf("id = %q, want cs_test_1", resp.ID)
	}
	if resp.URL == "" {
		t.Error("url is empty")
	}

	if len(svc.sessionParams) != 1 {
		t.Fatalf("service calls = %d, want 1", len(svc.sessionParams))
	}
	params := svc.sessionParams[0]
	if len(params.Items) != 2 {
		t.Errorf("items = %d, want 2", len(params.Items))
	}
	if params.Email != "ana@example.com" {
		t.Errorf("email = %q", params.Email)
	}
	if params.IdempotencyKey != "idem-123" {
		t.Errorf("idempotency key = %q", params.IdempotencyKey)
	}
}

func TestCreateCheckoutSession_EmptyCart(t *testing.T) {
	svc := &fakeCheckoutService{}
	h := newCheckoutHandler(svc)

	rec := postJSON(h.CreateCheckoutSession, "/api/checkout", `{"items": []}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(svc.sessionParams) != 0 {
		t.Errorf("service called on invalid request")
	}

	var resp struct {
		Error struct {
			Fields map[string]string `json:"fields"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := resp.Error.Fields["items"]; !ok {
		t.Errorf("expected field error on items, got %v", resp.Error.Fields)
	}
}

func TestCreateCheckoutSession_InvalidItem(t *testing.T) {
	svc := &fakeCheckoutService{}
	h := newCheckoutHandler(svc)

	body := `{"items": [{"name": "", "price": 1850, "quantity": 0}]}`
	rec := postJSON(h.CreateCheckoutSession, "/api/checkout", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateCheckoutSession_BadJSON(t *testing.T) {
	h := newCheckoutHandler(&fakeCheckoutService{})

	rec := postJSON(h.CreateCheckoutSession, "/api/checkout", `{"items": `)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateCheckoutSession_InvalidEmail(t *testing.T) {
	h := newCheckoutHandler(&fakeCheckoutService{})

	body := `{"items": [{"name": "Beans", "price": 1850, "quantity": 1}], "email": "not-an-email"}`
	rec := postJSON(h.CreateCheckoutSession, "/api/checkout", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateCheckoutSession_ProviderFailure(t *testing.T) {
	svc := &fakeCheckoutService{
		err: &billing.PaymentInitError{Code: "card_declined", Message: "declined"},
	}
	h := newCheckoutHandler(svc)

	rec := postJSON(h.CreateCheckoutSession, "/api/checkout", validCheckoutBody)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusPaymentRequired)
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	svc := &fakeCheckoutService{}
	h := newCheckoutHandler(svc)

	rec := postJSON(h.CreatePaymentIntent, "/api/payment-intent", validCheckoutBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		PaymentIntentID string `json:"payment_intent_id"`
		ClientSecret    string `json:"client_secret"`
		AmountCents     int64  `json:"amount_cents"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.PaymentIntentID != "pi_test_1" {
		t.Errorf("payment_intent_id = %q", resp.PaymentIntentID)
	}
	if resp.ClientSecret != "pi_test_1_secret" {
		t.Errorf("client_secret = %q", resp.ClientSecret)
	}
	if resp.AmountCents != 8200 {
		t.Errorf("amount_cents = %d, want 8200", resp.AmountCents)
	}
}

func TestCreatePaymentIntent_UserAndAddress(t *testing.T) {
	svc := &fakeCheckoutService{}
	h := newCheckoutHandler(svc)

	body := `{
		"items": [{"name": "Beans", "price": 1850, "quantity": 1}],
		"user_id": "7d444840-9dc0-11d1-b245-5ffdce74fad2",
		"shipping_address": {"name": "Ana Reyes", "line1": "42 Ayala Ave", "city": "Makati", "country": "PH"}
	}`
	rec := postJSON(h.CreatePaymentIntent, "/api/payment-intent", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	params := svc.intentParams[0]
	if params.UserID == nil || params.UserID.String() != "7d444840-9dc0-11d1-b245-5ffdce74fad2" {
		t.Errorf("user id not parsed: %v", params.UserID)
	}
	if params.ShippingAddress == nil || params.ShippingAddress.Line1 != "42 Ayala Ave" {
		t.Errorf("shipping address not mapped: %+v", params.ShippingAddress)
	}
}
