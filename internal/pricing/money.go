package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value held at full decimal precision.
// Rounding happens only when a value is rendered via Round or Display.
type Money = decimal.Decimal

// DefaultIGVRate is the general sales tax (IGV) rate applied to taxed goods.
var DefaultIGVRate = decimal.RequireFromString("0.18")

var hundred = decimal.NewFromInt(100)

const (
	// MaxFractionDigits is the finest scale accepted for an input amount.
	MaxFractionDigits = 6
	// maxExponent bounds |m| below 1e12 together with maxAmount.
	maxExponent = 12
)

// maxAmount is the exclusive upper bound for any input amount.
var maxAmount = decimal.New(1, maxExponent)

// CheckAmount rejects amounts whose size or scale is outside what a till can
// hold: |m| must be below 1e12 with at most MaxFractionDigits decimals. The
// exponent is checked before any comparison, since rescaling a value such as
// 1e3000000 is itself expensive.
func CheckAmount(field string, m Money) error {
	exp := m.Exponent()
	if exp > maxExponent || exp < -3*MaxFractionDigits {
		return invalid(field, "amount out of range")
	}
	if m.Abs().GreaterThanOrEqual(maxAmount) {
		return invalid(field, "must be below %s", maxAmount)
	}
	if exp < -MaxFractionDigits && !m.Round(MaxFractionDigits).Equal(m) {
		return invalid(field, "at most %d decimal places", MaxFractionDigits)
	}
	return nil
}

// Zero returns the zero amount.
func Zero() Money { return decimal.Zero }

// Round rounds m to cents. Only presentation and serialization code should call it.
func Round(m Money) Money {
	return m.Round(2)
}

// Display formats m with exactly two decimal places.
func Display(m Money) string {
	return m.StringFixed(2)
}

// ParseMoney parses a decimal amount such as "100.00" or "12.5".
func ParseMoney(value string) (Money, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("parse amount: empty value")
	}
	m, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return m, nil
}

// MustMoney is ParseMoney for constants and tests. It panics on malformed input.
func MustMoney(value string) Money {
	m, err := ParseMoney(value)
	if err != nil {
		panic(err)
	}
	return m
}
