package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAPIKey is returned when the provider API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")

	// ErrAmountTooSmall is returned when the charge is below the processor's minimum.
	ErrAmountTooSmall = errors.New("billing: amount below processor minimum")
)

// PaymentInitError wraps a processor failure during checkout initiation.
// Nothing has been persisted when it occurs, so it carries no compensation
// obligations, just the upstream message.
type PaymentInitError struct {
	// Op is the initiation operation that failed ("checkout.session",
	// "payment.intent", "customer.create").
	Op string

	// Message is the upstream processor message.
	Message string

	// Code is the processor error code, if any (e.g. "amount_too_small").
	Code string

	// Err is the underlying SDK error.
	Err error
}

func (e *PaymentInitError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("billing: %s failed: %s (code: %s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("billing: %s failed: %s", e.Op, e.Message)
}

func (e *PaymentInitError) Unwrap() error {
	return e.Err
}

// IsTemporary reports whether the failure is likely transient and retryable.
func (e *PaymentInitError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.Code == "api_connection_error"
}
