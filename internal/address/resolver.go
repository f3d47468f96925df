package address

import (
	"strings"

	"github.com/rfontaine/atelier/internal/domain"
)

// Resolved is the outcome of resolving a payment event's shipping and
// billing facts into one canonical postal address.
//
// Display and Address are derived from the same resolution pass. Callers
// must not re-resolve for rendering: the address shown to the customer and
// the address stored for fulfillment have to agree.
type Resolved struct {
	// Provided is false when neither party carried a usable address.
	Provided bool

	// Name is the customer display name, resolved with the same shipping
	// over billing precedence but independently of the address fields.
	Name string

	// Address is the structured record for storage. Zero when !Provided.
	Address domain.ShippingAddress

	// Display is the flattened, line-broken rendering for emails.
	// Empty when !Provided.
	Display string
}

// Resolve picks one canonical address from the shipping and billing facts of
// a payment event. Pure and deterministic.
//
// Precedence: shipping if it has a street line, else billing if it has one,
// else whichever party is present at all (its partial address feeds the
// display name but is not a provided address), else none.
func Resolve(shipping, billing *domain.PaymentParty) Resolved {
	out := Resolved{Name: resolveName(shipping, billing)}

	switch {
	case shipping != nil && shipping.Address.Line1 != "":
		out.Address = shipping.Address
	case billing != nil && billing.Address.Line1 != "":
		out.Address = billing.Address
	default:
		// Neither party has a street line. An address without one is not
		// shippable, so the order records "no address provided".
		return out
	}

	out.Provided = true
	out.Address.Name = out.Name
	out.Display = formatDisplay(out.Name, out.Address)
	return out
}

func resolveName(shipping, billing *domain.PaymentParty) string {
	if shipping != nil && shipping.Name != "" {
		return shipping.Name
	}
	if billing != nil && billing.Name != "" {
		return billing.Name
	}
	return ""
}

// Display renders a stored address as newline-separated lines, name first.
// Produces the same rendering as Resolved.Display for an address that was
// persisted and re-read.
func Display(a domain.ShippingAddress) string {
	return formatDisplay(a.Name, a)
}

// formatDisplay renders the resolved address as newline-separated lines,
// skipping empty parts.
func formatDisplay(name string, a domain.ShippingAddress) string {
	var lines []string
	if name != "" {
		lines = append(lines, name)
	}
	lines = append(lines, a.Line1)
	if a.Line2 != "" {
		lines = append(lines, a.Line2)
	}

	var locality []string
	for _, part := range []string{a.City, a.State, a.PostalCode} {
		if part != "" {
			locality = append(locality, part)
		}
	}
	if len(locality) > 0 {
		lines = append(lines, strings.Join(locality, ", "))
	}
	if a.Country != "" {
		lines = append(lines, a.Country)
	}

	return strings.Join(lines, "\n")
}
