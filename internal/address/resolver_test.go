package address

import (
	"strings"
	"testing"

	"github.com/rfontaine/atelier/internal/domain"
)

func shippingParty(name, line1 string) *domain.PaymentParty {
	return &domain.PaymentParty{
		Name: name,
		Address: domain.ShippingAddress{
			Line1:      line1,
			City:       "Makati",
			PostalCode: "1226",
			Country:    "PH",
		},
	}
}

func TestResolve_ShippingWins(t *testing.T) {
	shipping := &domain.PaymentParty{
		Name: "Ana Reyes",
		Address: domain.ShippingAddress{
			Line1:   "1 Rue du Faubourg",
			City:    "Paris",
			Country: "FR",
		},
	}
	billing := &domain.PaymentParty{
		Name: "Someone Else",
		Address: domain.ShippingAddress{
			Line1:   "99 Billing Ave",
			City:    "London",
			Country: "GB",
		},
	}

	got := Resolve(shipping, billing)

	if !got.Provided {
		t.Fatal("expected a provided address")
	}
	if got.Address.City != "Paris" {
		t.Errorf("city = %q, want Paris", got.Address.City)
	}
	if got.Address.Line1 != "1 Rue du Faubourg" {
		t.Errorf("line1 = %q, want shipping line1", got.Address.Line1)
	}
	if got.Name != "Ana Reyes" {
		t.Errorf("name = %q, want shipping name", got.Name)
	}
}

func TestResolve_BillingFallback(t *testing.T) {
	// Shipping present but without a street line: billing wins the address.
	shipping := &domain.PaymentParty{
		Name:    "Ana Reyes",
		Address: domain.ShippingAddress{City: "Paris", Country: "FR"},
	}
	billing := shippingParty("", "42 Ayala Ave")

	got := Resolve(shipping, billing)

	if !got.Provided {
		t.Fatal("expected a provided address")
	}
	if got.Address.Line1 != "42 Ayala Ave" {
		t.Errorf("line1 = %q, want billing line1", got.Address.Line1)
	}
	// Name precedence is independent of which address won.
	if got.Name != "Ana Reyes" {
		t.Errorf("name = %q, want shipping name", got.Name)
	}
}

func TestResolve_NoStreetLineAnywhere(t *testing.T) {
	shipping := &domain.PaymentParty{
		Name:    "Ana Reyes",
		Address: domain.ShippingAddress{City: "Paris"},
	}

	got := Resolve(shipping, nil)

	if got.Provided {
		t.Fatal("expected no provided address")
	}
	if got.Display != "" {
		t.Errorf("display = %q, want empty", got.Display)
	}
	// The partial party still yields a display name.
	if got.Name != "Ana Reyes" {
		t.Errorf("name = %q, want Ana Reyes", got.Name)
	}
}

func TestResolve_BothNil(t *testing.T) {
	got := Resolve(nil, nil)
	if got.Provided || got.Name != "" || got.Display != "" {
		t.Errorf("Resolve(nil, nil) = %+v, want zero result", got)
	}
}

func TestResolve_DisplayMatchesStructured(t *testing.T) {
	shipping := &domain.PaymentParty{
		Name: "Miguel Santos",
		Address: domain.ShippingAddress{
			Line1:      "12F Tower One",
			Line2:      "Ayala Triangle",
			City:       "Makati",
			State:      "NCR",
			PostalCode: "1226",
			Country:    "PH",
		},
	}

	got := Resolve(shipping, nil)

	want := "Miguel Santos\n12F Tower One\nAyala Triangle\nMakati, NCR, 1226\nPH"
	if got.Display != want {
		t.Errorf("display = %q, want %q", got.Display, want)
	}
	// Every structured field appears in the display string.
	for _, part := range []string{got.Address.Line1, got.Address.Line2, got.Address.City, got.Address.Country} {
		if !strings.Contains(got.Display, part) {
			t.Errorf("display missing %q", part)
		}
	}
}

func TestNormalizeCountry(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PH", "PH"},
		{"ph", "PH"},
		{"Philippines", "PH"},
		{"philippines", "PH"},
		{"United States", "US"},
		{"USA", "US"},
		{"United Kingdom", "GB"},
		{"  France  ", "FR"},
		{"", "PH"},
		{"Atlantis", "PH"},
		{"12", "PH"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeCountry(tt.in, "PH"); got != tt.want {
				t.Errorf("NormalizeCountry(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
