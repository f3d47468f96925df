package address

import "strings"

// countryCodes maps common free-text country names to ISO 3166-1 alpha-2
// codes. Checkout forms are free-text in the wild; the payment processor
// rejects anything that is not a 2-letter code, so unrecognized input falls
// back to the configured default country instead of failing the checkout.
var countryCodes = map[string]string{
	"philippines":    "PH",
	"united states":  "US",
	"usa":            "US",
	"united kingdom": "GB",
	"uk":             "GB",
	"great britain":  "GB",
	"canada":         "CA",
	"australia":      "AU",
	"singapore":      "SG",
	"japan":          "JP",
	"china":          "CN",
	"hong kong":      "HK",
	"south korea":    "KR",
	"korea":          "KR",
	"france":         "FR",
	"germany":        "DE",
	"spain":          "ES",
	"italy":          "IT",
	"netherlands":    "NL",
	"india":          "IN",
	"indonesia":      "ID",
	"malaysia":       "MY",
	"thailand":       "TH",
	"vietnam":        "VN",
	"taiwan":         "TW",
	"new zealand":    "NZ",
	"mexico":         "MX",
	"brazil":         "BR",
	"united arab emirates": "AE",
	"uae":                  "AE",
	"saudi arabia":         "SA",
	"switzerland":          "CH",
	"sweden":               "SE",
	"norway":               "NO",
	"denmark":              "DK",
	"ireland":              "IE",
	"portugal":             "PT",
	"belgium":              "BE",
	"austria":              "AT",
}

// NormalizeCountry converts free-text country input to a 2-letter ISO code.
// Already-valid codes pass through uppercased; recognized names are looked
// up; anything else becomes fallback.
func NormalizeCountry(raw, fallback string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	if len(trimmed) == 2 && isLetters(trimmed) {
		return strings.ToUpper(trimmed)
	}
	if code, ok := countryCodes[strings.ToLower(trimmed)]; ok {
		return code
	}
	return fallback
}

func isLetters(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
