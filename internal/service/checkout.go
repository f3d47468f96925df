package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/rfontaine/atelier/internal/address"
	"github.com/rfontaine/atelier/internal/billing"
	"github.com/rfontaine/atelier/internal/domain"
	"github.com/rfontaine/atelier/internal/telemetry"
)

// CheckoutService initiates payments. It never writes orders: the order is
// materialized later, when the payment processor confirms via webhook.
type CheckoutService interface {
	// CreateCheckoutSession starts a hosted checkout for the given cart.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*billing.CheckoutSession, error)

	// CreatePaymentIntent starts an embedded payment for the given cart.
	CreatePaymentIntent(ctx context.Context, params CheckoutParams) (*billing.PaymentIntent, error)
}

// CheckoutParams describes a cart about to be paid for.
type CheckoutParams struct {
	Items []domain.CartItem

	// UserID identifies a signed-in customer; nil for guest checkout.
	UserID *uuid.UUID

	// Email prefills the payment form for guests.
	Email string

	// ShippingAddress, when set, is attached to the payment so the
	// processor does not re-collect it. When nil the customer's saved
	// addresses are consulted.
	ShippingAddress *domain.ShippingAddress

	// IdempotencyKey guards against duplicate intents on client retry.
	// Only used by CreatePaymentIntent.
	IdempotencyKey string
}

// CheckoutConfig carries the environment pieces checkout needs.
type CheckoutConfig struct {
	// BaseURL is the public origin, used to absolutize relative image
	// paths and to build success/cancel URLs.
	BaseURL string

	// Currency is the ISO 4217 code charged, lowercase (e.g. "usd").
	Currency string

	// DefaultCountry is the ISO alpha-2 fallback for unrecognized
	// free-text country input.
	DefaultCountry string
}

type checkoutService struct {
	provider billing.Provider
	identity domain.IdentityStore
	config   CheckoutConfig
	logger   *slog.Logger
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(provider billing.Provider, identity domain.IdentityStore, config CheckoutConfig, logger *slog.Logger) CheckoutService {
	if config.Currency == "" {
		config.Currency = "usd"
	}
	if config.DefaultCountry == "" {
		config.DefaultCountry = "PH"
	}
	return &checkoutService{
		provider: provider,
		identity: identity,
		config:   config,
		logger:   logger.With("service", "checkout"),
	}
}

// CreateCheckoutSession starts a hosted checkout session for the cart.
func (s *checkoutService) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*billing.CheckoutSession, error) {
	if len(params.Items) == 0 {
		return nil, domain.ErrCartEmpty
	}

	// Absolutize before encoding: the metadata snapshot is what the webhook
	// rebuilds order items from, and it has no request context to resolve
	// relative paths against.
	items := s.absolutizeItems(params.Items)

	metadata, err := domain.EncodeCartMetadata(items, params.UserID)
	if err != nil {
		return nil, err
	}

	lineItems := make([]billing.LineItem, len(items))
	for i, item := range items {
		lineItems[i] = billing.LineItem{
			Name:            item.Name,
			UnitAmountCents: item.PriceCents,
			Quantity:        int64(item.Quantity),
			ImageURL:        item.Image,
		}
	}

	sessionParams := billing.CreateCheckoutSessionParams{
		LineItems:  lineItems,
		Currency:   s.config.Currency,
		SuccessURL: s.config.BaseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.config.BaseURL + "/checkout/cancel",
		Metadata:   metadata,
	}

	customerID, email, err := s.resolveCustomer(ctx, params)
	if err != nil {
		return nil, err
	}
	sessionParams.CustomerID = customerID
	sessionParams.CustomerEmail = email

	if addr := s.resolveShippingAddress(ctx, params); addr != nil {
		sessionParams.ShippingAddress = addr
	}

	session, err := s.provider.CreateCheckoutSession(ctx, sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	telemetry.RecordCheckoutStarted("hosted")
	s.logger.Info("checkout session created",
		"session_id", session.ID,
		"items", len(params.Items))

	return session, nil
}

// CreatePaymentIntent starts an embedded payment for the cart. The amount
// is computed server-side from the cart lines, never taken from the client.
func (s *checkoutService) CreatePaymentIntent(ctx context.Context, params CheckoutParams) (*billing.PaymentIntent, error) {
	if len(params.Items) == 0 {
		return nil, domain.ErrCartEmpty
	}

	items := s.absolutizeItems(params.Items)

	metadata, err := domain.EncodeCartMetadata(items, params.UserID)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, item := range params.Items {
		total += item.PriceCents * int64(item.Quantity)
	}

	intentParams := billing.CreatePaymentIntentParams{
		AmountCents:    total,
		Currency:       s.config.Currency,
		ReceiptEmail:   params.Email,
		Metadata:       metadata,
		IdempotencyKey: params.IdempotencyKey,
	}

	customerID, _, err := s.resolveCustomer(ctx, params)
	if err != nil {
		return nil, err
	}
	intentParams.CustomerID = customerID

	if addr := s.resolveShippingAddress(ctx, params); addr != nil {
		intentParams.ShippingAddress = addr
		if params.UserID != nil {
			if cust, err := s.identity.GetCustomer(ctx, *params.UserID); err == nil {
				intentParams.ShippingName = cust.FullName()
			}
		}
	}

	intent, err := s.provider.CreatePaymentIntent(ctx, intentParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	telemetry.RecordCheckoutStarted("embedded")
	s.logger.Info("payment intent created",
		"payment_intent_id", intent.ID,
		"amount_cents", total)

	return intent, nil
}

// resolveCustomer returns the provider customer id for a signed-in user,
// creating and persisting one on first checkout. Guests get an email only.
func (s *checkoutService) resolveCustomer(ctx context.Context, params CheckoutParams) (customerID, email string, err error) {
	if params.UserID == nil {
		return "", params.Email, nil
	}

	cust, err := s.identity.GetCustomer(ctx, *params.UserID)
	if err != nil {
		return "", "", fmt.Errorf("failed to load customer: %w", err)
	}

	if cust.ProviderCustomerID != "" {
		return cust.ProviderCustomerID, "", nil
	}

	created, err := s.provider.CreateCustomer(ctx, billing.CreateCustomerParams{
		Email: cust.Email,
		Name:  cust.FullName(),
		Metadata: map[string]string{
			domain.MetadataKeyUserID: cust.ID.String(),
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to create billing customer: %w", err)
	}

	if err := s.identity.SetProviderCustomerID(ctx, cust.ID, created.ID); err != nil {
		// The provider record exists either way; a second checkout just
		// creates another one. Log and continue.
		s.logger.Warn("failed to persist provider customer id",
			"user_id", cust.ID,
			"provider_customer_id", created.ID,
			"error", err)
	}

	return created.ID, "", nil
}

// resolveShippingAddress picks the address to attach to the payment:
// explicit request address first, then the user's default saved address,
// then their first saved address, then none.
func (s *checkoutService) resolveShippingAddress(ctx context.Context, params CheckoutParams) *billing.Address {
	if params.ShippingAddress != nil && params.ShippingAddress.Provided() {
		return s.toBillingAddress(*params.ShippingAddress)
	}

	if params.UserID == nil {
		return nil
	}

	saved, err := s.identity.ListCustomerAddresses(ctx, *params.UserID)
	if err != nil {
		s.logger.Warn("failed to load saved addresses", "user_id", *params.UserID, "error", err)
		return nil
	}
	if len(saved) == 0 {
		return nil
	}

	for _, a := range saved {
		if a.IsDefault {
			return s.toBillingAddress(a.Address)
		}
	}
	return s.toBillingAddress(saved[0].Address)
}

func (s *checkoutService) toBillingAddress(addr domain.ShippingAddress) *billing.Address {
	return &billing.Address{
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    address.NormalizeCountry(addr.Country, s.config.DefaultCountry),
	}
}

// absolutizeItems returns a copy of the cart with every image URL made
// absolute. Both the hosted-page line items and the metadata snapshot must
// carry absolute URLs.
func (s *checkoutService) absolutizeItems(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	for i, item := range items {
		item.Image = s.absoluteImageURL(item.Image)
		out[i] = item
	}
	return out
}

// absoluteImageURL makes relative image paths absolute. The processor's
// hosted page fetches images itself, so relative paths would 404.
func (s *checkoutService) absoluteImageURL(image string) string {
	if image == "" {
		return ""
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	return s.config.BaseURL + "/" + strings.TrimPrefix(image, "/")
}
