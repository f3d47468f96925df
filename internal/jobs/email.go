package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rfontaine/atelier/internal/domain"
	"github.com/rfontaine/atelier/internal/email"
	"github.com/rfontaine/atelier/internal/telemetry"
)

// QueueEmail is the queue name for outbound mail jobs.
const QueueEmail = "email"

// Job type constants for email jobs
const (
	JobTypeOrderConfirmation = "email:order_confirmation"
)

// OrderConfirmationPayload is the JSON payload for an order confirmation
// email job. It snapshots everything the template needs so the job survives
// later edits to the order.
type OrderConfirmationPayload struct {
	OrderID      uuid.UUID `json:"order_id"`
	OrderNumber  string    `json:"order_number"`
	Email        string    `json:"email"`
	CustomerName string    `json:"customer_name"`
	OrderDate    time.Time `json:"order_date"`

	Items      []OrderLinePayload `json:"items"`
	TotalCents int64              `json:"total_cents"`
	Currency   string             `json:"currency"`

	ShippingAddress string `json:"shipping_address,omitempty"`
}

// OrderLinePayload is one receipt line in the payload.
type OrderLinePayload struct {
	Name       string `json:"name"`
	Quantity   int32  `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// NewOrderConfirmationPayload builds the email payload from a materialized
// order. shippingDisplay is the multi-line address form, empty when absent.
func NewOrderConfirmationPayload(detail *domain.OrderDetail, customerName, shippingDisplay string) OrderConfirmationPayload {
	items := make([]OrderLinePayload, len(detail.Items))
	for i, it := range detail.Items {
		items[i] = OrderLinePayload{
			Name:       it.Name,
			Quantity:   it.Quantity,
			PriceCents: it.PriceCents,
		}
	}

	return OrderConfirmationPayload{
		OrderID:         detail.Order.ID,
		OrderNumber:     detail.Order.OrderNumber,
		Email:           detail.Order.Email,
		CustomerName:    customerName,
		OrderDate:       detail.Order.CreatedAt,
		Items:           items,
		TotalCents:      detail.Order.TotalCents,
		Currency:        strings.ToUpper(detail.Order.Currency),
		ShippingAddress: shippingDisplay,
	}
}

// EnqueueOrderConfirmationEmail enqueues an order confirmation email job.
func EnqueueOrderConfirmationEmail(ctx context.Context, q domain.JobQueue, payload OrderConfirmationPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if _, err := q.EnqueueJob(ctx, JobTypeOrderConfirmation, QueueEmail, payloadJSON); err != nil {
		return err
	}

	telemetry.RecordJobEnqueued(JobTypeOrderConfirmation)
	return nil
}

// ProcessEmailJob dispatches a claimed email job to the email service.
func ProcessEmailJob(ctx context.Context, job *domain.Job, emailService *email.Service) error {
	switch job.JobType {
	case JobTypeOrderConfirmation:
		var payload OrderConfirmationPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal order confirmation payload: %w", err)
		}

		lines := make([]email.OrderLine, len(payload.Items))
		for i, it := range payload.Items {
			lines[i] = email.OrderLine{
				Name:       it.Name,
				Quantity:   it.Quantity,
				PriceCents: it.PriceCents,
				TotalCents: it.PriceCents * int64(it.Quantity),
			}
		}

		return emailService.SendOrderConfirmation(ctx, email.OrderConfirmationEmail{
			OrderNumber:     payload.OrderNumber,
			Email:           payload.Email,
			CustomerName:    payload.CustomerName,
			OrderDate:       payload.OrderDate,
			Items:           lines,
			TotalCents:      payload.TotalCents,
			Currency:        payload.Currency,
			ShippingAddress: payload.ShippingAddress,
		})

	default:
		return fmt.Errorf("unknown email job type: %s", job.JobType)
	}
}

// IsEmailJob checks if a job type is an email job.
func IsEmailJob(jobType string) bool {
	return strings.HasPrefix(jobType, "email:")
}
