package billing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// MockProvider is a configurable fake for tests. Any func field left nil
// gets a sensible default that succeeds.
type MockProvider struct {
	CreateCheckoutSessionFunc   func(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)
	CreatePaymentIntentFunc     func(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)
	CreateCustomerFunc          func(ctx context.Context, params CreateCustomerParams) (*Customer, error)
	VerifyWebhookSignatureFunc  func(payload []byte, signature string, secret string) error

	sessionCounter  atomic.Int64
	intentCounter   atomic.Int64
	customerCounter atomic.Int64
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}
	n := m.sessionCounter.Add(1)
	return &CheckoutSession{
		ID:  fmt.Sprintf("cs_test_%d", n),
		URL: fmt.Sprintf("https://checkout.example.com/c/pay/cs_test_%d", n),
	}, nil
}

func (m *MockProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, params)
	}
	n := m.intentCounter.Add(1)
	id := fmt.Sprintf("pi_test_%d", n)
	return &PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		AmountCents:  params.AmountCents,
		Currency:     params.Currency,
		Status:       "requires_payment_method",
		Metadata:     params.Metadata,
		CreatedAt:    time.Now(),
	}, nil
}

func (m *MockProvider) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, params)
	}
	n := m.customerCounter.Add(1)
	return &Customer{
		ID:        fmt.Sprintf("cus_test_%d", n),
		Email:     params.Email,
		Name:      params.Name,
		CreatedAt: time.Now(),
	}, nil
}

func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature, secret)
	}
	return nil
}
