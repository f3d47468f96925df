package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/rfontaine/atelier/internal/billing"
	"github.com/rfontaine/atelier/internal/domain"
	"github.com/rfontaine/atelier/internal/handler"
	"github.com/rfontaine/atelier/internal/middleware"
	"github.com/rfontaine/atelier/internal/service"
)

// CheckoutHandler exposes the checkout initiation endpoints.
type CheckoutHandler struct {
	checkout service.CheckoutService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewCheckoutHandler creates a checkout API handler.
func NewCheckoutHandler(checkout service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("component", "checkout_api"),
	}
}

type cartItemRequest struct {
	ProductID  string `json:"id"`
	Name       string `json:"name" validate:"required"`
	PriceCents int64  `json:"price" validate:"gte=0"`
	Quantity   int32  `json:"quantity" validate:"gt=0"`
	Image      string `json:"image"`
}

type addressRequest struct {
	Name       string `json:"name"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type checkoutRequest struct {
	Items           []cartItemRequest `json:"items" validate:"required,min=1,dive"`
	Email           string            `json:"email" validate:"omitempty,email"`
	UserID          string            `json:"user_id" validate:"omitempty,uuid"`
	ShippingAddress *addressRequest   `json:"shipping_address"`
	IdempotencyKey  string            `json:"idempotency_key"`
}

// toParams converts a validated request into service checkout params.
func (req *checkoutRequest) toParams() service.CheckoutParams {
	items := make([]domain.CartItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = domain.CartItem{
			ProductID:  it.ProductID,
			Name:       it.Name,
			PriceCents: it.PriceCents,
			Quantity:   it.Quantity,
			Image:      it.Image,
		}
	}

	params := service.CheckoutParams{
		Items:          items,
		Email:          req.Email,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.UserID != "" {
		// Already validated as a UUID.
		id, _ := uuid.Parse(req.UserID)
		params.UserID = &id
	}
	if req.ShippingAddress != nil {
		params.ShippingAddress = &domain.ShippingAddress{
			Name:       req.ShippingAddress.Name,
			Line1:      req.ShippingAddress.Line1,
			Line2:      req.ShippingAddress.Line2,
			City:       req.ShippingAddress.City,
			State:      req.ShippingAddress.State,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
		}
	}
	return params
}

// CreateCheckoutSession handles POST /api/checkout.
// Starts a hosted checkout and returns the redirect URL.
func (h *CheckoutHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context(), h.logger)

	req, ok := h.bindCheckoutRequest(w, r)
	if !ok {
		return
	}

	session, err := h.checkout.CreateCheckoutSession(r.Context(), req.toParams())
	if err != nil {
		logger.Error("failed to create checkout session", "error", err)
		handler.ErrorResponse(w, r, paymentError(err, "checkout.session"))
		return
	}

	logger.Info("checkout session created", "session_id", session.ID)
	writeJSON(w, http.StatusOK, struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}{
		ID:  session.ID,
		URL: session.URL,
	})
}

// CreatePaymentIntent handles POST /api/payment-intent.
// Starts an embedded payment and returns the client secret for frontend
// confirmation.
func (h *CheckoutHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context(), h.logger)

	req, ok := h.bindCheckoutRequest(w, r)
	if !ok {
		return
	}

	intent, err := h.checkout.CreatePaymentIntent(r.Context(), req.toParams())
	if err != nil {
		logger.Error("failed to create payment intent", "error", err)
		handler.ErrorResponse(w, r, paymentError(err, "checkout.intent"))
		return
	}

	logger.Info("payment intent created",
		"payment_intent_id", intent.ID,
		"amount_cents", intent.AmountCents,
	)
	writeJSON(w, http.StatusOK, struct {
		PaymentIntentID string `json:"payment_intent_id"`
		ClientSecret    string `json:"client_secret"`
		AmountCents     int64  `json:"amount_cents"`
	}{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		AmountCents:     intent.AmountCents,
	})
}

// bindCheckoutRequest decodes and validates the shared checkout request
// shape. Writes the error response itself and returns ok=false on failure.
func (h *CheckoutHandler) bindCheckoutRequest(w http.ResponseWriter, r *http.Request) (*checkoutRequest, bool) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "checkout.bind", "invalid request body"))
		return nil, false
	}

	if err := h.validate.Struct(&req); err != nil {
		handler.ValidationErrorResponse(w, r, toFieldErrors("checkout.bind", err))
		return nil, false
	}

	return &req, true
}

// toFieldErrors converts validator failures into a domain ValidationError
// keyed by the offending field.
func toFieldErrors(op string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Invalid(op, err.Error())
	}

	var out error
	for _, fe := range verrs {
		field := strings.ToLower(fe.Namespace())
		// Strip the root struct name from the namespace.
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		out = domain.AddFieldError(out, field, fieldMessage(fe))
	}
	if out == nil {
		return domain.Invalid(op, "validation failed")
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "min":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "is invalid"
	}
}

// paymentError maps provider initiation failures to a payment-required
// domain error so clients can distinguish them from validation failures.
func paymentError(err error, op string) error {
	var initErr *billing.PaymentInitError
	if errors.As(err, &initErr) {
		return domain.WrapError(err, domain.EPAYMENT, op, "payment provider rejected the request")
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
