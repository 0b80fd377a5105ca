// Package core provides money parsing and handling utilities.
//
// Monetary values are carried as signed integer cents. The sign convention
// is fixed across the whole application: positive cents are an expense,
// negative cents are revenue. All aggregation happens in cent space;
// conversion to a decimal major unit exists only for display.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// Money is a signed amount in integer minor units (cents).
type Money struct {
	Cents int64
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Neg returns the amount with its sign flipped.
func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

// IsRevenue reports whether the amount is revenue under the fixed sign
// convention (negative = revenue, positive = expense).
func (m Money) IsRevenue() bool {
	return m.Cents < 0
}

// Major returns the decimal major-unit value as a float64 for display
// purposes only. Use cents for calculations to avoid floating-point drift.
func (m Money) Major() float64 {
	return float64(m.Cents) / 100.0
}

// ParseAmount converts a decimal string to signed cents with half-up
// rounding on the third decimal place. It accepts both dot (12.34) and
// comma (12,34) separators and an optional leading sign. A zero amount is
// rejected: a transaction that moves no money is always an input error.
//
// Examples:
//
//	ParseAmount("12.34")  -> 1234
//	ParseAmount("-12,34") -> -1234 (revenue)
//	ParseAmount("12.346") -> 1235  (rounds up)
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")

	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return Money{}, ErrInvalidAmount
		}
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return Money{}, ErrInvalidAmount
	}

	// Take first two fractional digits; then half-up rounding on third
	var fracCents int64
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracCents = d1 * 10
		if len(fracPart) > 1 {
			d2 := int64(fracPart[1] - '0')
			fracCents += d2
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}

	cents := iv*100 + fracCents
	if cents == 0 {
		return Money{}, ErrInvalidAmount
	}
	if neg {
		cents = -cents
	}
	return Money{Cents: cents}, nil
}
