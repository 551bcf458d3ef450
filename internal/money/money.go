// Package money represents auction amounts as integer minor units (cents)
// so bid comparisons never drift the way binary floats would, while still
// accepting and emitting the fixed-point decimal strings the wire format
// requires.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative quantity of money in minor units (cents).
type Amount int64

// Zero is the zero amount.
const Zero Amount = 0

// FromDecimalString parses a fixed-point decimal string ("8500.00", "8500")
// into an Amount. Returns an error if the string is not a valid decimal or
// would round to a fractional cent.
func FromDecimalString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// FromDecimal converts a decimal.Decimal into an Amount, rejecting values
// that carry more than 2 fractional digits of precision.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has sub-cent precision", d.String())
	}
	return Amount(cents.IntPart()), nil
}

// Decimal returns the decimal.Decimal representation (dollars.cents).
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String renders the amount as a fixed 2-decimal string, e.g. "9350.00".
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a == 0 }

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// Half returns half of the amount, rounded half-up to the nearest cent —
// the guarantee-payment calculation.
func (a Amount) Half() Amount {
	// a is already in integer cents; half may land on a .5 cent boundary,
	// which we round up (away from zero — amounts are never negative).
	if a%2 == 0 {
		return a / 2
	}
	return a/2 + 1
}

// MinimumNextBid returns ceil(a * (1 + percent/100), 2dp) using integer
// basis-point arithmetic so no float rounding can occur. percentBasisPoints
// is the increment percent scaled by 100 (10.00% -> 1000).
func (a Amount) MinimumNextBid(percentBasisPoints int64) Amount {
	if a.IsZero() {
		return 0
	}
	numerator := int64(a) * (10000 + percentBasisPoints)
	// ceil(numerator / 10000)
	return Amount((numerator + 9999) / 10000)
}
