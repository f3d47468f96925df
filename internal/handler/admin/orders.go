package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rfontaine/atelier/internal/domain"
	"github.com/rfontaine/atelier/internal/handler"
	"github.com/rfontaine/atelier/internal/middleware"
)

// OrderHandler exposes the admin order management endpoints.
type OrderHandler struct {
	orders domain.OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an admin order handler.
func NewOrderHandler(orders domain.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger.With("component", "admin_orders"),
	}
}

type addressJSON struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

type orderJSON struct {
	ID          uuid.UUID  `json:"id"`
	OrderNumber string     `json:"order_number"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	Email       string     `json:"email"`

	TotalCents int64  `json:"total_cents"`
	Currency   string `json:"currency"`

	Status      string `json:"status"`
	Fulfillment string `json:"fulfillment"`

	ShippingAddress *addressJSON `json:"shipping_address,omitempty"`

	ProviderPaymentID string `json:"provider_payment_id,omitempty"`
	ProviderSessionID string `json:"provider_session_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type orderItemJSON struct {
	ID         uuid.UUID `json:"id"`
	ProductID  string    `json:"product_id,omitempty"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Quantity   int32     `json:"quantity"`
	Image      string    `json:"image,omitempty"`
}

type orderDetailJSON struct {
	orderJSON
	Items []orderItemJSON `json:"items"`
}

func toOrderJSON(o domain.Order) orderJSON {
	out := orderJSON{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		UserID:            o.UserID,
		Email:             o.Email,
		TotalCents:        o.TotalCents,
		Currency:          o.Currency,
		Status:            string(o.Status),
		Fulfillment:       string(o.Fulfillment),
		ProviderPaymentID: o.ProviderPaymentID,
		ProviderSessionID: o.ProviderSessionID,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	if o.ShippingAddress != nil {
		out.ShippingAddress = &addressJSON{
			Name:       o.ShippingAddress.Name,
			Line1:      o.ShippingAddress.Line1,
			Line2:      o.ShippingAddress.Line2,
			City:       o.ShippingAddress.City,
			State:      o.ShippingAddress.State,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		}
	}
	return out
}

func toOrderDetailJSON(d *domain.OrderDetail) orderDetailJSON {
	out := orderDetailJSON{orderJSON: toOrderJSON(d.Order)}
	out.Items = make([]orderItemJSON, len(d.Items))
	for i, it := range d.Items {
		out.Items[i] = orderItemJSON{
			ID:         it.ID,
			ProductID:  it.ProductID,
			Name:       it.Name,
			PriceCents: it.PriceCents,
			Quantity:   it.Quantity,
			Image:      it.Image,
		}
	}
	return out
}

// List handles GET /admin/api/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	orders, err := h.orders.ListOrders(r.Context(), limit, offset)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	out := make([]orderJSON, len(orders))
	for i, o := range orders {
		out[i] = toOrderJSON(o)
	}
	writeJSON(w, http.StatusOK, struct {
		Orders []orderJSON `json:"orders"`
	}{Orders: out})
}

// Get handles GET /admin/api/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	detail, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDetailJSON(detail))
}

// CreateDraft handles POST /admin/api/orders.
// Creates a manual order in draft status, outside the payment pipeline.
func (h *OrderHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context(), h.logger)

	var req struct {
		Email           string `json:"email"`
		UserID          string `json:"user_id"`
		Currency        string `json:"currency"`
		Items           []struct {
			ProductID  string `json:"id"`
			Name       string `json:"name"`
			PriceCents int64  `json:"price"`
			Quantity   int32  `json:"quantity"`
		} `json:"items"`
		ShippingAddress *addressJSON `json:"shipping_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "admin.order.create", "invalid request body"))
		return
	}

	params := domain.CreateDraftOrderParams{
		Email:    req.Email,
		Currency: req.Currency,
	}
	if req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			handler.ValidationErrorResponse(w, r, domain.NewValidationError("admin.order.create", "user_id", "must be a valid UUID"))
			return
		}
		params.UserID = &id
	}
	for _, it := range req.Items {
		params.Items = append(params.Items, domain.CartItem{
			ProductID:  it.ProductID,
			Name:       it.Name,
			PriceCents: it.PriceCents,
			Quantity:   it.Quantity,
		})
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

	detail, err := h.orders.CreateDraftOrder(r.Context(), params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	logger.Info("draft order created", "order_id", detail.Order.ID, "order_number", detail.Order.OrderNumber)
	writeJSON(w, http.StatusCreated, toOrderDetailJSON(detail))
}

// Update handles PATCH /admin/api/orders/{id}.
// Applies status and fulfillment transitions.
func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Status      *string `json:"status"`
		Fulfillment *string `json:"fulfillment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "admin.order.update", "invalid request body"))
		return
	}

	params := domain.UpdateOrderParams{}
	if req.Status != nil {
		s := domain.OrderStatus(*req.Status)
		params.Status = &s
	}
	if req.Fulfillment != nil {
		f := domain.FulfillmentStatus(*req.Fulfillment)
		params.Fulfillment = &f
	}

	order, err := h.orders.UpdateOrder(r.Context(), id, params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderJSON(*order))
}

// Delete handles DELETE /admin/api/orders/{id}.
// Restricted to draft orders; paid orders are immutable history.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathID extracts and parses the {id} path segment. Writes the error
// response itself on failure.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "admin.path", "invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads limit/offset query params with service-side clamping
// left to the service layer.
func pagination(r *http.Request) (limit, offset int32) {
	if v, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 32); err == nil {
		limit = int32(v)
	}
	if v, err := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 32); err == nil {
		offset = int32(v)
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
