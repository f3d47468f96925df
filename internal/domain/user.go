package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer is the slice of the identity store the pipeline needs: enough to
// attach a saved address and a processor customer record to a checkout.
type Customer struct {
	ID        uuid.UUID
	Email     string
	FirstName string
	LastName  string

	// ProviderCustomerID is the processor-side customer id (e.g. Stripe
	// cus_...). Empty until the customer's first checkout; persisted so
	// repeat checkouts reuse one processor record instead of creating
	// duplicates.
	ProviderCustomerID string

	CreatedAt time.Time
}

// FullName joins the name parts, tolerating either being empty.
func (c Customer) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.LastName
	}
}

// CustomerAddress is a saved postal address on a customer account.
type CustomerAddress struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Address   ShippingAddress
	IsDefault bool
	CreatedAt time.Time
}

// ErrCustomerNotFound is returned when a checkout references an unknown user.
var ErrCustomerNotFound = &Error{Code: ENOTFOUND, Message: "Customer not found"}
