// Package barcode generates and validates EAN-13 identifiers for catalog labels.
package barcode

import (
	"errors"
	"fmt"
)

const (
	// Length is the number of digits in an EAN-13 code.
	Length = 13
	// DefaultPrefix is the GS1 country prefix stamped on generated codes.
	DefaultPrefix = "775"

	issuerDigits = 5
	itemDigits   = 4
)

// ErrMalformed is returned when input is not the expected run of ASCII digits.
var ErrMalformed = errors.New("barcode: malformed digits")

// CheckDigit computes the EAN-13 check digit for the first 12 digits.
// Digits at even 0-based positions weigh 1, odd positions weigh 3.
func CheckDigit(first12 string) (int, error) {
	if len(first12) != Length-1 || !allDigits(first12) {
		return 0, fmt.Errorf("%w: want %d digits, got %q", ErrMalformed, Length-1, first12)
	}
	sum := 0
	for i := 0; i < len(first12); i++ {
		d := int(first12[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return (10 - sum%10) % 10, nil
}

// Complete appends the check digit to first12.
func Complete(first12 string) (string, error) {
	d, err := CheckDigit(first12)
	if err != nil {
		return "", err
	}
	return first12 + string(rune('0'+d)), nil
}

// Validate reports whether code is exactly 13 ASCII digits with a matching
// check digit. Malformed input yields false.
func Validate(code string) bool {
	if len(code) != Length || !allDigits(code) {
		return false
	}
	d, err := CheckDigit(code[:Length-1])
	if err != nil {
		return false
	}
	return int(code[Length-1]-'0') == d
}

// Segments is the positional breakdown of a generated code.
type Segments struct {
	Prefix string `json:"prefix"`
	Issuer string `json:"issuer"`
	Item   string `json:"item"`
	Check  string `json:"check"`
}

// Split breaks a 13-digit code into its segments. It does not verify the
// check digit; ok is false only when code is not 13 digits.
func Split(code string) (Segments, bool) {
	if len(code) != Length || !allDigits(code) {
		return Segments{}, false
	}
	p := len(DefaultPrefix)
	return Segments{
		Prefix: code[:p],
		Issuer: code[p : p+issuerDigits],
		Item:   code[p+issuerDigits : p+issuerDigits+itemDigits],
		Check:  code[Length-1:],
	}, true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
