package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability.
type BusinessMetrics struct {
	// Checkout funnel
	CheckoutStarted  *prometheus.CounterVec
	PaymentSucceeded *prometheus.CounterVec
	PaymentFailed    *prometheus.CounterVec

	// Orders
	OrdersCreated  *prometheus.CounterVec
	OrderValue     *prometheus.HistogramVec
	OrderItemCount *prometheus.HistogramVec

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Background jobs
	JobsEnqueued  *prometheus.CounterVec
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec

	// Email delivery
	EmailSent   *prometheus.CounterVec
	EmailFailed *prometheus.CounterVec
}

// NewBusinessMetrics creates and registers all business metrics
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "atelier"
	}

	subsystem := "business"

	return &BusinessMetrics{
		CheckoutStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_started_total",
				Help:      "Total checkouts initiated",
			},
			[]string{"flow"}, // flow: hosted, embedded
		),
		PaymentSucceeded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_succeeded_total",
				Help:      "Total successful payments",
			},
			[]string{"event_type"},
		),
		PaymentFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_failed_total",
				Help:      "Total failed payments",
			},
			[]string{"failure_reason"},
		),
		OrdersCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_created_total",
				Help:      "Total orders created",
			},
			[]string{"source"}, // source: webhook, admin
		),
		OrderValue: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_cents",
				Help:      "Order value distribution in cents",
				Buckets:   []float64{1000, 2500, 5000, 10000, 25000, 50000, 100000, 200000, 500000},
			},
			[]string{"source"},
		),
		OrderItemCount: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_item_count",
				Help:      "Number of items per order",
				Buckets:   []float64{1, 2, 3, 5, 10, 15, 20},
			},
			[]string{"source"},
		),
		WebhookReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_received_total",
				Help:      "Total webhooks received",
			},
			[]string{"event_type"},
		),
		WebhookProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processed_total",
				Help:      "Total webhooks successfully processed",
			},
			[]string{"event_type"},
		),
		WebhookFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_failed_total",
				Help:      "Total webhook processing failures",
			},
			[]string{"event_type", "error_type"},
		),
		WebhookLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "webhook_processing_seconds",
				Help:      "Webhook processing duration",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"event_type"},
		),
		JobsEnqueued: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "jobs_enqueued_total",
				Help:      "Total background jobs enqueued",
			},
			[]string{"job_type"},
		),
		JobsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "jobs_processed_total",
				Help:      "Total background jobs successfully processed",
			},
			[]string{"job_type"},
		),
		JobsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "jobs_failed_total",
				Help:      "Total background job failures",
			},
			[]string{"job_type"},
		),
		EmailSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "emails_sent_total",
				Help:      "Total emails sent by type",
			},
			[]string{"email_type"},
		),
		EmailFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "emails_failed_total",
				Help:      "Total email delivery failures",
			},
			[]string{"email_type"},
		),
	}
}

// Global instance for easy access from handlers
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}

// Recording helpers below are nil-safe so code paths work in tests where
// metrics are never initialized.

func RecordCheckoutStarted(flow string) {
	if Business != nil {
		Business.CheckoutStarted.WithLabelValues(flow).Inc()
	}
}

func RecordPaymentSucceeded(eventType string) {
	if Business != nil {
		Business.PaymentSucceeded.WithLabelValues(eventType).Inc()
	}
}

func RecordPaymentFailed(reason string) {
	if Business != nil {
		Business.PaymentFailed.WithLabelValues(reason).Inc()
	}
}

func RecordOrderCreated(source string, totalCents int64, itemCount int) {
	if Business != nil {
		Business.OrdersCreated.WithLabelValues(source).Inc()
		Business.OrderValue.WithLabelValues(source).Observe(float64(totalCents))
		Business.OrderItemCount.WithLabelValues(source).Observe(float64(itemCount))
	}
}

func RecordWebhookReceived(eventType string) {
	if Business != nil {
		Business.WebhookReceived.WithLabelValues(eventType).Inc()
	}
}

func RecordWebhookProcessed(eventType string, seconds float64) {
	if Business != nil {
		Business.WebhookProcessed.WithLabelValues(eventType).Inc()
		Business.WebhookLatency.WithLabelValues(eventType).Observe(seconds)
	}
}

func RecordWebhookFailed(eventType, errorType string) {
	if Business != nil {
		Business.WebhookFailed.WithLabelValues(eventType, errorType).Inc()
	}
}

func RecordJobEnqueued(jobType string) {
	if Business != nil {
		Business.JobsEnqueued.WithLabelValues(jobType).Inc()
	}
}

func RecordJobProcessed(jobType string) {
	if Business != nil {
		Business.JobsProcessed.WithLabelValues(jobType).Inc()
	}
}

func RecordJobFailed(jobType string) {
	if Business != nil {
		Business.JobsFailed.WithLabelValues(jobType).Inc()
	}
}

func RecordEmailSent(emailType string) {
	if Business != nil {
		Business.EmailSent.WithLabelValues(emailType).Inc()
	}
}

func RecordEmailFailed(emailType string) {
	if Business != nil {
		Business.EmailFailed.WithLabelValues(emailType).Inc()
	}
}
