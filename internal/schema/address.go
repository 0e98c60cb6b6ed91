package schema

import (
	"regexp"
	"strings"

	"localbiz-extractor/internal/models"
)

// countryCodes maps common country spellings to ISO 3166-1 alpha-2 codes.
var countryCodes = map[string]string{
	"australia":                "AU",
	"united states":            "US",
	"usa":                      "US",
	"united states of america": "US",
	"america":                  "US",
	"united kingdom":           "GB",
	"uk":                       "GB",
	"great britain":            "GB",
	"england":                  "GB",
	"scotland":                 "GB",
	"wales":                    "GB",
	"canada":                   "CA",
	"new zealand":              "NZ",
	"ireland":                  "IE",
	"south africa":             "ZA",
	"germany":                  "DE",
	"france":                   "FR",
	"italy":                    "IT",
	"spain":                    "ES",
	"netherlands":              "NL",
	"belgium":                  "BE",
	"switzerland":              "CH",
	"austria":                  "AT",
	"sweden":                   "SE",
	"norway":                   "NO",
	"denmark":                  "DK",
	"finland":                  "FI",
	"poland":                   "PL",
	"greece":                   "GR",
	"portugal":                 "PT",
	"china":                    "CN",
	"japan":                    "JP",
	"south korea":              "KR",
	"korea":                    "KR",
	"india":                    "IN",
	"singapore":                "SG",
	"malaysia":                 "MY",
	"thailand":                 "TH",
	"brazil":                   "BR",
	"argentina":                "AR",
	"mexico":                   "MX",
	"中国":                       "CN",
	"美国":                       "US",
	"英国":                       "GB",
	"日本":                       "JP",
	"澳大利亚":                     "AU",
	"加拿大":                      "CA",
	"新加坡":                      "SG",
}

var (
	usStateZipRe = regexp.MustCompile(`^([A-Z]{2})\s+(\d{5}(?:-\d{4})?)$`)
	auCityRe     = regexp.MustCompile(`^(.+?)\s+([A-Z]{2,3})\s+(\d{4})$`)
	postalTailRe = regexp.MustCompile(`^(.+?)\s+(\d{3,6})$`)

	controlRe    = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	spaceRe      = regexp.MustCompile(`\s+`)
	leadJunkRe   = regexp.MustCompile(`^[^\p{L}\p{N}]+`)
	trailJunkRe  = regexp.MustCompile(`[^\p{L}\p{N}\s,.\-()]+$`)
	twoLetterISO = regexp.MustCompile(`^[A-Za-z]{2}$`)
)

// CleanText collapses whitespace and strips control characters and stray
// leading or trailing punctuation from scraped text.
func CleanText(text string) string {
	text = spaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	text = controlRe.ReplaceAllString(text, "")
	text = leadJunkRe.ReplaceAllString(text, "")
	text = trailJunkRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ParseAddress splits a one-line listing address into Schema.org PostalAddress
// components. Parsing is heuristic; anything not recognized as country, region
// or postal code stays in the street address rather than being dropped.
func ParseAddress(raw string) *models.PostalAddress {
	addr := &models.PostalAddress{Type: "PostalAddress"}

	cleaned := CleanText(raw)
	if cleaned == "" {
		return addr
	}

	parts := splitParts(cleaned)
	if len(parts) == 0 {
		return addr
	}

	// Country is usually the last comma-separated part.
	last := strings.ToLower(parts[len(parts)-1])
	if code, ok := countryCodes[last]; ok {
		addr.AddressCountry = code
		parts = parts[:len(parts)-1]
	} else if twoLetterISO.MatchString(parts[len(parts)-1]) {
		addr.AddressCountry = strings.ToUpper(parts[len(parts)-1])
		parts = parts[:len(parts)-1]
	}

	switch {
	case len(parts) >= 2:
		stateZip := parts[len(parts)-1]
		city := parts[len(parts)-2]

		if m := usStateZipRe.FindStringSubmatch(stateZip); m != nil {
			// US shape: "City, ST 12345".
			addr.AddressLocality = city
			addr.AddressRegion = m[1]
			addr.PostalCode = m[2]
			parts = parts[:len(parts)-2]
		} else {
			parts = consumeTail(addr, parts)
		}
	case len(parts) == 1:
		parts = consumeTail(addr, parts)
	}

	if len(parts) > 0 {
		addr.StreetAddress = strings.Join(parts, ", ")
	}

	return addr
}

// consumeTail tries the AU "City ST 1234" shape and the bare trailing postal
// code shape on the last remaining part.
func consumeTail(addr *models.PostalAddress, parts []string) []string {
	tail := parts[len(parts)-1]

	if m := auCityRe.FindStringSubmatch(tail); m != nil {
		addr.AddressLocality = strings.TrimSpace(m[1])
		addr.AddressRegion = m[2]
		addr.PostalCode = m[3]
		return parts[:len(parts)-1]
	}

	if m := postalTailRe.FindStringSubmatch(tail); m != nil {
		addr.AddressLocality = strings.TrimSpace(m[1])
		addr.PostalCode = m[2]
		return parts[:len(parts)-1]
	}

	addr.AddressLocality = tail
	return parts[:len(parts)-1]
}

func splitParts(s string) []string {
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
