package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider implements the Provider interface using Stripe.
type StripeProvider struct {
	config StripeConfig
}

// NewStripeProvider creates a new Stripe payment provider.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	stripe.Key = config.APIKey
	return &StripeProvider{config: config}, nil
}

// CreateCheckoutSession creates a Stripe Checkout session in payment mode.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	if len(params.LineItems) == 0 {
		return nil, &PaymentInitError{
			Op:      "checkout.session",
			Message: "at least one line item is required",
		}
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(params.LineItems))
	for _, item := range params.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.ImageURL != "" {
			productData.Images = stripe.StringSlice([]string{item.ImageURL})
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(params.Currency),
				UnitAmount:  stripe.Int64(item.UnitAmountCents),
				ProductData: productData,
			},
		})
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
	}
	sessionParams.Context = ctx

	// A session is linked to an existing customer when we have one; otherwise
	// the email just prefills the hosted form.
	if params.CustomerID != "" {
		sessionParams.Customer = stripe.String(params.CustomerID)
	} else if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}

	if params.ShippingAddress != nil {
		sessionParams.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			Shipping: shippingDetailsParams("", params.ShippingAddress),
		}
	}

	for k, v := range params.Metadata {
		sessionParams.AddMetadata(k, v)
	}

	sess, err := session.New(sessionParams)
	if err != nil {
		return nil, wrapStripeError("checkout.session", err)
	}

	return &CheckoutSession{
		ID:  sess.ID,
		URL: sess.URL,
	}, nil
}

// CreatePaymentIntent creates a Stripe payment intent for embedded flows.
func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	intentParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	intentParams.Context = ctx

	if params.CustomerID != "" {
		intentParams.Customer = stripe.String(params.CustomerID)
	}
	if params.ReceiptEmail != "" {
		intentParams.ReceiptEmail = stripe.String(params.ReceiptEmail)
	}
	if params.ShippingAddress != nil {
		intentParams.Shipping = shippingDetailsParams(params.ShippingName, params.ShippingAddress)
	}
	if params.IdempotencyKey != "" {
		intentParams.SetIdempotencyKey(params.IdempotencyKey)
	}

	for k, v := range params.Metadata {
		intentParams.AddMetadata(k, v)
	}

	intent, err := paymentintent.New(intentParams)
	if err != nil {
		return nil, wrapStripeError("payment.intent", err)
	}

	return &PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  intent.Amount,
		Currency:     string(intent.Currency),
		Status:       string(intent.Status),
		Metadata:     intent.Metadata,
		CreatedAt:    time.Unix(intent.Created, 0),
	}, nil
}

// CreateCustomer creates a customer record in Stripe.
func (p *StripeProvider) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	customerParams := &stripe.CustomerParams{
		Email: stripe.String(params.Email),
	}
	customerParams.Context = ctx

	if params.Name != "" {
		customerParams.Name = stripe.String(params.Name)
	}
	for k, v := range params.Metadata {
		customerParams.AddMetadata(k, v)
	}

	cust, err := customer.New(customerParams)
	if err != nil {
		return nil, wrapStripeError("customer.create", err)
	}

	return &Customer{
		ID:        cust.ID,
		Email:     cust.Email,
		Name:      cust.Name,
		CreatedAt: time.Unix(cust.Created, 0),
	}, nil
}

// VerifyWebhookSignature verifies the Stripe-Signature header against the
// raw request payload. The API version pinned in the dashboard can differ
// from the SDK's, so version mismatch is not treated as a failure.
func (p *StripeProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	_, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	return nil
}

func shippingDetailsParams(name string, addr *Address) *stripe.ShippingDetailsParams {
	details := &stripe.ShippingDetailsParams{
		Address: &stripe.AddressParams{
			Line1:      stripe.String(addr.Line1),
			City:       stripe.String(addr.City),
			PostalCode: stripe.String(addr.PostalCode),
			Country:    stripe.String(addr.Country),
		},
	}
	if addr.Line2 != "" {
		details.Address.Line2 = stripe.String(addr.Line2)
	}
	if addr.State != "" {
		details.Address.State = stripe.String(addr.State)
	}
	if name != "" {
		details.Name = stripe.String(name)
	}
	return details
}

// wrapStripeError converts a Stripe SDK error into a PaymentInitError,
// preserving the processor code so callers can distinguish declines from
// transient failures.
func wrapStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := string(stripeErr.Code)
		if code == "" {
			code = string(stripeErr.Type)
		}
		return &PaymentInitError{
			Op:      op,
			Message: stripeErr.Msg,
			Code:    code,
			Err:     err,
		}
	}
	return &PaymentInitError{
		Op:      op,
		Message: err.Error(),
		Err:     err,
	}
}
