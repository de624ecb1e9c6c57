// Package core holds the domain model shared by the ledger, account and
// notification services.
//
// This file contains monetary parsing and arithmetic helpers. All amounts are
// fixed-point decimals; float64 never carries money.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a user-entered amount to a decimal with two fraction
// digits.
//
// It accepts both dot (12.34) and comma (12,34) separators and rounds half-up
// on the third decimal place. Record amounts are strictly positive; zero,
// negative and malformed inputs return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil (rounds up)
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if d.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FromCents converts integer cents, the storage representation, to a decimal.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ToCents converts a decimal amount to integer cents, rounding half-up on any
// residual fraction.
func ToCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

// ProgressOf returns the spent share of a budget as a percentage in [0, 100]
// with two decimals, half-up. A zero budget amount yields zero progress
// regardless of spending, so the derivation never divides by zero.
func ProgressOf(amount, remaining decimal.Decimal) decimal.Decimal {
	if amount.IsZero() {
		return decimal.Zero
	}
	spent := amount.Sub(remaining)
	return spent.Mul(hundred).Div(amount).Round(2)
}
