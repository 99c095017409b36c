package pricing

import (
	"fmt"
	"strings"
)

// TaxCategory is the IGV affectation of a product line.
type TaxCategory string

const (
	// Taxed lines carry IGV (SUNAT code 10).
	Taxed TaxCategory = "TAXED"
	// Exempt lines are exonerated from IGV (SUNAT code 20).
	Exempt TaxCategory = "EXEMPT"
	// Unaffected lines are outside the scope of IGV (SUNAT code 30).
	Unaffected TaxCategory = "UNAFFECTED"
	// Export lines are zero-rated exports (SUNAT code 40).
	Export TaxCategory = "EXPORT"
)

var sunatCodes = map[TaxCategory]string{
	Taxed:      "10",
	Exempt:     "20",
	Unaffected: "30",
	Export:     "40",
}

// ParseTaxCategory accepts either the category name or its SUNAT affectation code.
func ParseTaxCategory(value string) (TaxCategory, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if c := TaxCategory(normalized); c.Valid() {
		return c, nil
	}
	for c, code := range sunatCodes {
		if code == normalized {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown tax category %q", value)
}

// Valid reports whether c is one of the known categories.
func (c TaxCategory) Valid() bool {
	_, ok := sunatCodes[c]
	return ok
}

// SUNATCode returns the affectation code used on electronic invoices.
func (c TaxCategory) SUNATCode() string {
	return sunatCodes[c]
}

// UnmarshalText lets JSON payloads carry either form accepted by ParseTaxCategory.
func (c *TaxCategory) UnmarshalText(text []byte) error {
	parsed, err := ParseTaxCategory(string(text))
	if err != nil {
		return &ValidationError{Field: "taxCategory", Reason: err.Error()}
	}
	*c = parsed
	return nil
}
