// Package money holds the decimal helpers shared by the ledger and the gateway.
// Amounts are exact decimals with two fractional digits.
package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits stored for every amount.
const Places = 2

var (
	// ErrNegativeAmount is returned for amounts below zero.
	ErrNegativeAmount = errors.New("amount must not be negative")
	// ErrInvalidAmount is returned for unparsable or non-finite input.
	ErrInvalidAmount = errors.New("amount is not a valid number")
	// ErrTooPrecise is returned when an amount carries more than two fractional digits.
	ErrTooPrecise = errors.New("amount has more than two fractional digits")
)

var hundred = decimal.NewFromInt(100)

// Zero is 0.00.
var Zero = decimal.Zero

// Parse parses a decimal string into a validated amount.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := Validate(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromFloat converts a float, rejecting NaN and infinities.
func FromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ErrInvalidAmount
	}
	d := decimal.NewFromFloat(f).Round(Places)
	if err := Validate(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// Validate checks that d is non-negative with at most two fractional digits.
func Validate(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrNegativeAmount
	}
	if !d.Equal(d.Round(Places)) {
		return ErrTooPrecise
	}
	return nil
}

// Format renders d with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// ToMinorUnits converts d to integer minor units (kopecks), rounding
// value*100 half away from zero.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// MinorUnitsFromString converts a textual amount to minor units. Unparsable
// input converts to zero.
func MinorUnitsFromString(s string) int64 {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return ToMinorUnits(d)
}

// MinorUnitsFromFloat converts a float to minor units. NaN and infinities
// convert to zero.
func MinorUnitsFromFloat(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return ToMinorUnits(decimal.NewFromFloat(f))
}
