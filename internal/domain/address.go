package domain

// ShippingAddress is the postal address embedded on an order.
// It is a value object, not a standalone entity: an order either carries a
// fully resolved address or no address at all. Partial addresses are never
// persisted (see Provided).
type ShippingAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

// Provided reports whether the address is concrete enough to persist and
// ship to. Line1 is the anchor field: an address without a street line is
// treated as "not provided" even if other fields are set.
func (a ShippingAddress) Provided() bool {
	return a.Line1 != ""
}

// PaymentParty holds the customer-supplied shipping or billing facts attached
// to a payment event. Either portion may be missing; the address resolver
// (internal/address) decides which party wins.
type PaymentParty struct {
	Name    string
	Address ShippingAddress
}
