package billing

import (
	"context"
	"time"
)

// Provider defines the interface for payment processing.
// Implementations can use Stripe, PayPal, Square, etc.
type Provider interface {
	// CreateCheckoutSession creates a hosted checkout session for a cart.
	// Returns the session id and the URL to redirect the customer to.
	CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// CreatePaymentIntent creates a payment intent for client-rendered
	// (embedded) payment flows. Returns the client secret for frontend
	// confirmation.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// CreateCustomer creates a customer record in the billing provider.
	// Called at most once per local user; the returned id is persisted and
	// reused on later checkouts.
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	// Must be called with the exact raw request bytes: re-serializing a
	// parsed payload invalidates the signature.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

// LineItem is one cart line priced for the processor.
type LineItem struct {
	Name string

	// UnitAmountCents is the per-unit price in minor units.
	UnitAmountCents int64
	Quantity        int64

	// ImageURL must be absolute; the processor renders it on the hosted page.
	ImageURL string
}

// CreateCheckoutSessionParams contains parameters for a hosted session.
type CreateCheckoutSessionParams struct {
	LineItems []LineItem

	// Currency code (ISO 4217 lowercase), e.g. "usd".
	Currency string

	// CustomerID links the session to an existing provider customer.
	// Mutually exclusive with CustomerEmail.
	CustomerID string

	// CustomerEmail prefills the email field for guests.
	CustomerEmail string

	SuccessURL string
	CancelURL  string

	// ShippingAddress, when already known, is attached so the processor
	// does not re-collect it.
	ShippingAddress *Address

	// Metadata is echoed back on the completion webhook. This is the only
	// channel carrying order-reconstruction data across the async boundary.
	Metadata map[string]string
}

// CheckoutSession represents a hosted checkout session.
type CheckoutSession struct {
	ID  string
	URL string
}

// CreatePaymentIntentParams contains parameters for an embedded payment.
type CreatePaymentIntentParams struct {
	// AmountCents is the amount in smallest currency unit.
	AmountCents int64

	// Currency code (ISO 4217 lowercase).
	Currency string

	// CustomerID is optional; links payment to an existing customer.
	CustomerID string

	// ReceiptEmail is where the processor sends its own receipt.
	ReceiptEmail string

	// Metadata is echoed back on the succeeded webhook (same contract as
	// the session metadata).
	Metadata map[string]string

	// IdempotencyKey prevents duplicate intents on client retry.
	IdempotencyKey string

	// ShippingName/ShippingAddress, when known, are attached to the intent.
	ShippingName    string
	ShippingAddress *Address
}

// PaymentIntent represents a processor payment intent.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       string
	Metadata     map[string]string
	CreatedAt    time.Time
}

// CreateCustomerParams contains parameters for creating a customer.
type CreateCustomerParams struct {
	Email    string
	Name     string
	Metadata map[string]string
}

// Customer represents a billing customer.
type Customer struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Address is a postal address in processor shape.
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}
