package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/rfontaine/atelier/internal/address"
	"github.com/rfontaine/atelier/internal/billing"
	"github.com/rfontaine/atelier/internal/domain"
	"github.com/rfontaine/atelier/internal/handler"
	"github.com/rfontaine/atelier/internal/jobs"
	"github.com/rfontaine/atelier/internal/telemetry"
)

// maxWebhookBody caps the request body read. Stripe events are small; an
// oversized body is not a legitimate event.
const maxWebhookBody = 1 << 16

// StripeWebhookConfig contains configuration for Stripe webhook handling.
type StripeWebhookConfig struct {
	// WebhookSecret is the webhook signing secret from the Stripe dashboard.
	WebhookSecret string
}

// StripeHandler ingests Stripe webhook events and drives order
// materialization. It is the only entry point through which payments become
// orders.
type StripeHandler struct {
	provider      billing.Provider
	orders        domain.OrderService
	notifications domain.NotificationService
	queue         domain.JobQueue
	config        StripeWebhookConfig
	logger        *slog.Logger
}

// NewStripeHandler creates a Stripe webhook handler.
func NewStripeHandler(
	provider billing.Provider,
	orders domain.OrderService,
	notifications domain.NotificationService,
	queue domain.JobQueue,
	config StripeWebhookConfig,
	logger *slog.Logger,
) *StripeHandler {
	return &StripeHandler{
		provider:      provider,
		orders:        orders,
		notifications: notifications,
		queue:         queue,
		config:        config,
		logger:        logger.With("component", "stripe_webhook"),
	}
}

// errResponded signals that an error response was already written.
var errResponded = errors.New("response written")

// HandleWebhook processes incoming Stripe webhook events.
//
// The signature is verified against the exact raw request bytes before any
// parsing. Once an event passes verification, the handler acknowledges with
// 200 for everything except errors a redelivery could fix: storage failures
// return 500 so Stripe retries, while permanently malformed events are logged
// and acknowledged to stop the retry loop.
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.stripe", "method not allowed"))
		return
	}

	// Read one byte past the limit so an oversize body is rejected as such
	// instead of being truncated, failing signature verification, and
	// masquerading as a forgery.
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody+1))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Internal(err, "webhook.stripe", "failed to read request body"))
		return
	}
	if int64(len(payload)) > maxWebhookBody {
		h.logger.Warn("webhook body exceeds size limit", "limit_bytes", int64(maxWebhookBody))
		handler.ErrorResponse(w, r, domain.Errorf(domain.ETOOLARGE, "webhook.stripe", "request body too large"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.provider.VerifyWebhookSignature(payload, signature, h.config.WebhookSecret); err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "webhook.stripe", "invalid signature"))
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.stripe", "failed to parse event"))
		return
	}

	eventType := string(event.Type)
	telemetry.RecordWebhookReceived(eventType)
	start := time.Now()
	defer func() {
		telemetry.RecordWebhookProcessed(eventType, time.Since(start).Seconds())
	}()

	h.logger.Info("webhook event received", "event_id", event.ID, "event_type", eventType)

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		err = h.handleCheckoutSessionCompleted(w, r, event)

	case "payment_intent.succeeded":
		err = h.handlePaymentIntentSucceeded(w, r, event)

	case "payment_intent.payment_failed":
		h.handlePaymentIntentFailed(event)

	case "payment_intent.canceled":
		h.logger.Info("payment intent canceled", "event_id", event.ID)

	default:
		h.logger.Debug("ignoring unhandled event type", "event_type", eventType)
	}

	if err != nil {
		// The event handler already wrote the error response.
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"received": true}`))
}

// checkoutSessionEvent is the slice of a checkout.session object this handler
// needs. Decoding into a local struct instead of stripe.CheckoutSession keeps
// both shipping shapes readable: newer API versions nest shipping under
// collected_information, older ones carry it at the top level.
type checkoutSessionEvent struct {
	ID             string            `json:"id"`
	AmountTotal    int64             `json:"amount_total"`
	Currency       string            `json:"currency"`
	PaymentStatus  string            `json:"payment_status"`
	Metadata       map[string]string `json:"metadata"`
	CustomerEmail  string            `json:"customer_email"`
	PaymentIntent  idOrObject        `json:"payment_intent"`
	CustomerDetail *partyJSON        `json:"customer_details"`

	ShippingDetails      *partyJSON `json:"shipping_details"`
	CollectedInformation *struct {
		ShippingDetails *partyJSON `json:"shipping_details"`
	} `json:"collected_information"`
}

// idOrObject decodes an expandable Stripe reference that may arrive as a bare
// id string or as an embedded object.
type idOrObject struct {
	ID string `json:"id"`
}

func (x *idOrObject) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &x.ID)
	}
	type alias idOrObject
	return json.Unmarshal(data, (*alias)(x))
}

// partyJSON is the shipping/billing party shape shared by customer_details
// and shipping_details.
type partyJSON struct {
	Name    string       `json:"name"`
	Email   string       `json:"email"`
	Address *addressJSON `json:"address"`
}

type addressJSON struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (p *partyJSON) toParty() *domain.PaymentParty {
	if p == nil {
		return nil
	}
	party := &domain.PaymentParty{Name: p.Name}
	if p.Address != nil {
		party.Address = domain.ShippingAddress{
			Line1:      p.Address.Line1,
			Line2:      p.Address.Line2,
			City:       p.Address.City,
			State:      p.Address.State,
			PostalCode: p.Address.PostalCode,
			Country:    p.Address.Country,
		}
	}
	return party
}

// handleCheckoutSessionCompleted materializes an order from a completed
// hosted checkout session. Returns a non-nil error only after writing an
// error response.
func (h *StripeHandler) handleCheckoutSessionCompleted(w http.ResponseWriter, r *http.Request, event stripe.Event) error {
	var session checkoutSessionEvent
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "event_id", event.ID, "error", err)
		telemetry.RecordWebhookFailed(string(event.Type), "parse")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.stripe", "failed to parse checkout session"))
		return errResponded
	}

	// Sessions can complete before a delayed payment method settles; the
	// async_payment_succeeded event re-delivers the session once paid.
	if session.PaymentStatus != "paid" {
		h.logger.Info("session completed but not yet paid",
			"event_id", event.ID,
			"session_id", session.ID,
			"payment_status", session.PaymentStatus,
		)
		return nil
	}

	telemetry.RecordPaymentSucceeded(string(event.Type))

	email := session.CustomerEmail
	name := ""
	if session.CustomerDetail != nil {
		if session.CustomerDetail.Email != "" {
			email = session.CustomerDetail.Email
		}
		name = session.CustomerDetail.Name
	}

	shipping := session.ShippingDetails
	if session.CollectedInformation != nil && session.CollectedInformation.ShippingDetails != nil {
		shipping = session.CollectedInformation.ShippingDetails
	}

	ev := domain.PaymentEvent{
		EventID:           event.ID,
		ProviderPaymentID: session.PaymentIntent.ID,
		ProviderSessionID: session.ID,
		AmountCents:       session.AmountTotal,
		Currency:          session.Currency,
		Email:             email,
		CustomerName:      name,
		Shipping:          shipping.toParty(),
		Billing:           session.CustomerDetail.toParty(),
		Metadata:          session.Metadata,
		OccurredAt:        time.Unix(event.Created, 0),
	}

	return h.materialize(w, r, event, ev)
}

// handlePaymentIntentSucceeded materializes an order from a direct payment
// intent (embedded flow). Intents created by the hosted flow carry no cart
// metadata of their own and are skipped: the session event owns those.
func (h *StripeHandler) handlePaymentIntentSucceeded(w http.ResponseWriter, r *http.Request, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		h.logger.Error("failed to parse payment intent", "event_id", event.ID, "error", err)
		telemetry.RecordWebhookFailed(string(event.Type), "parse")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.stripe", "failed to parse payment intent"))
		return errResponded
	}

	if _, ok := intent.Metadata[domain.MetadataKeyItems]; !ok {
		h.logger.Info("payment intent has no cart metadata, skipping",
			"event_id", event.ID,
			"payment_intent_id", intent.ID,
		)
		return nil
	}

	telemetry.RecordPaymentSucceeded(string(event.Type))

	var shipping *domain.PaymentParty
	if intent.Shipping != nil {
		shipping = &domain.PaymentParty{Name: intent.Shipping.Name}
		if intent.Shipping.Address != nil {
			shipping.Address = domain.ShippingAddress{
				Line1:      intent.Shipping.Address.Line1,
				Line2:      intent.Shipping.Address.Line2,
				City:       intent.Shipping.Address.City,
				State:      intent.Shipping.Address.State,
				PostalCode: intent.Shipping.Address.PostalCode,
				Country:    intent.Shipping.Address.Country,
			}
		}
	}

	amount := intent.AmountReceived
	if amount == 0 {
		amount = intent.Amount
	}

	ev := domain.PaymentEvent{
		EventID:           event.ID,
		ProviderPaymentID: intent.ID,
		AmountCents:       amount,
		Currency:          string(intent.Currency),
		Email:             intent.ReceiptEmail,
		Shipping:          shipping,
		Metadata:          intent.Metadata,
		OccurredAt:        time.Unix(event.Created, 0),
	}
	if shipping != nil {
		ev.CustomerName = shipping.Name
	}

	return h.materialize(w, r, event, ev)
}

// materialize runs the payment event through the order service and, for a
// newly created order, fires the post-order side effects. Side effect
// failures are logged but never fail the webhook: the order exists, and
// redelivering the event would not create it again.
func (h *StripeHandler) materialize(w http.ResponseWriter, r *http.Request, event stripe.Event, ev domain.PaymentEvent) error {
	detail, created, err := h.orders.MaterializeOrder(r.Context(), ev)
	if err != nil {
		if domain.IsCode(err, domain.EINVALID) {
			// Redelivery cannot repair a malformed event; acknowledge so
			// Stripe stops retrying, keep the failure visible in logs.
			h.logger.Error("payment event rejected",
				"event_id", event.ID,
				"payment_intent_id", ev.ProviderPaymentID,
				"error", err,
			)
			telemetry.RecordWebhookFailed(string(event.Type), "invalid_event")
			return nil
		}

		h.logger.Error("order materialization failed",
			"event_id", event.ID,
			"payment_intent_id", ev.ProviderPaymentID,
			"error", err,
		)
		telemetry.RecordWebhookFailed(string(event.Type), "materialize")
		handler.ErrorResponse(w, r, domain.Internal(err, "webhook.stripe", "failed to create order"))
		return errResponded
	}

	if !created {
		h.logger.Info("duplicate payment event, order already exists",
			"event_id", event.ID,
			"order_id", detail.Order.ID,
			"payment_intent_id", ev.ProviderPaymentID,
		)
		return nil
	}

	h.logger.Info("order created from payment event",
		"event_id", event.ID,
		"order_id", detail.Order.ID,
		"order_number", detail.Order.OrderNumber,
		"total_cents", detail.Order.TotalCents,
	)

	if err := h.notifications.DispatchOrderNotifications(r.Context(), detail.Order); err != nil {
		h.logger.Error("failed to dispatch order notifications",
			"order_id", detail.Order.ID,
			"error", err,
		)
	}

	h.enqueueConfirmationEmail(r, detail, ev)
	return nil
}

// enqueueConfirmationEmail queues the receipt email for a new order.
// Best-effort: a queue failure loses the receipt, not the order.
func (h *StripeHandler) enqueueConfirmationEmail(r *http.Request, detail *domain.OrderDetail, ev domain.PaymentEvent) {
	if detail.Order.Email == "" {
		h.logger.Warn("order has no email, skipping confirmation", "order_id", detail.Order.ID)
		return
	}

	name := ev.CustomerName
	display := ""
	if detail.Order.ShippingAddress != nil {
		display = address.Display(*detail.Order.ShippingAddress)
		if name == "" {
			name = detail.Order.ShippingAddress.Name
		}
	}

	payload := jobs.NewOrderConfirmationPayload(detail, name, display)
	if err := jobs.EnqueueOrderConfirmationEmail(r.Context(), h.queue, payload); err != nil {
		h.logger.Error("failed to enqueue confirmation email",
			"order_id", detail.Order.ID,
			"error", err,
		)
	}
}

// handlePaymentIntentFailed records a failed payment for observability.
// No order exists yet, so there is nothing to roll back.
func (h *StripeHandler) handlePaymentIntentFailed(event stripe.Event) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		h.logger.Error("failed to parse payment intent", "event_id", event.ID, "error", err)
		return
	}

	reason := "unknown"
	if intent.LastPaymentError != nil {
		if intent.LastPaymentError.DeclineCode != "" {
			reason = string(intent.LastPaymentError.DeclineCode)
		} else if intent.LastPaymentError.Code != "" {
			reason = string(intent.LastPaymentError.Code)
		}
	}

	telemetry.RecordPaymentFailed(reason)
	h.logger.Warn("payment failed",
		"event_id", event.ID,
		"payment_intent_id", intent.ID,
		"reason", reason,
	)
}
