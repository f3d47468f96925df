package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rfontaine/atelier/internal/handler/admin"
	"github.com/rfontaine/atelier/internal/handler/api"
	"github.com/rfontaine/atelier/internal/handler/webhook"
	"github.com/rfontaine/atelier/internal/router"
)

// APIDeps contains dependencies for public API routes.
type APIDeps struct {
	CheckoutHandler *api.CheckoutHandler
}

// AdminDeps contains dependencies for admin routes.
type AdminDeps struct {
	OrderHandler        *admin.OrderHandler
	NotificationHandler *admin.NotificationHandler
}

// WebhookDeps contains dependencies for webhook routes.
type WebhookDeps struct {
	StripeHandler *webhook.StripeHandler
}

// RegisterAPIRoutes registers the public checkout API.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	r.Post("/api/checkout", deps.CheckoutHandler.CreateCheckoutSession)
	r.Post("/api/payment-intent", deps.CheckoutHandler.CreatePaymentIntent)
}

// RegisterAdminRoutes registers the admin order and notification API.
func RegisterAdminRoutes(r *router.Router, deps AdminDeps) {
	r.Get("/admin/api/orders", deps.OrderHandler.List)
	r.Post("/admin/api/orders", deps.OrderHandler.CreateDraft)
	r.Get("/admin/api/orders/{id}", deps.OrderHandler.Get)
	r.Patch("/admin/api/orders/{id}", deps.OrderHandler.Update)
	r.Delete("/admin/api/orders/{id}", deps.OrderHandler.Delete)

	r.Get("/admin/api/notifications", deps.NotificationHandler.List)
	r.Post("/admin/api/notifications/{id}/read", deps.NotificationHandler.MarkRead)
}

// RegisterWebhookRoutes registers the payment processor webhook routes.
//
// Webhook routes carry no authentication middleware: the handler verifies
// the request signature itself, against the raw body.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/stripe", deps.StripeHandler.HandleWebhook)
}

// RegisterOpsRoutes registers health and metrics endpoints.
func RegisterOpsRoutes(r *router.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	r.Handle(http.MethodGet, "/metrics", promhttp.Handler())
}
