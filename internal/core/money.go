// Package core provides the expense calculator: input validation, the two
// calculations and the session history they feed.
//
// This file contains amount parsing and formatting.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	maxAmountLength   = 64
	maxAmountExponent = 64
)

var hundred = decimal.NewFromInt(100)

// ParseAmount parses user text as an exact, strictly positive decimal.
//
// Surrounding whitespace is ignored and a decimal comma is accepted in place
// of the dot. Empty or non-numeric text, zero and negative values return
// ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("0")     -> 0, ErrInvalidAmount
//	ParseAmount("abc")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountLength {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		// 1,234.5 is ambiguous; only a lone decimal comma is accepted
		if strings.Contains(s, ".") || strings.Count(s, ",") > 1 {
			return decimal.Zero, ErrInvalidAmount
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if exp := d.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// IsPositiveNumber reports whether text is a usable positive amount.
func IsPositiveNumber(text string) bool {
	_, err := ParseAmount(text)
	return err == nil
}

// FormatMoney renders an amount with two decimals behind a currency symbol,
// e.g. "৳170.00" or "-৳5.50".
func FormatMoney(symbol string, d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + symbol + d.Neg().StringFixed(2)
	}
	return symbol + d.StringFixed(2)
}
