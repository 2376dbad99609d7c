// Package money holds amounts as integer minor units (cents).
package money

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrOverflow is returned when an amount no longer fits in int64 cents.
var ErrOverflow = errors.New("money: amount overflows int64 cents")

// Cents is a monetary amount in minor units.
type Cents int64

// FromDecimal converts a major-unit decimal (e.g. 10.50) to cents, rounding half away from zero.
func FromDecimal(d decimal.Decimal) (Cents, error) {
	shifted := d.Shift(2).Round(0)
	if !shifted.IsInteger() || shifted.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || shifted.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, ErrOverflow
	}
	return Cents(shifted.IntPart()), nil
}

// Times multiplies the amount by a quantity.
func (c Cents) Times(qty int) (Cents, error) {
	if qty == 0 || c == 0 {
		return 0, nil
	}
	product := int64(c) * int64(qty)
	if product/int64(qty) != int64(c) {
		return 0, ErrOverflow
	}
	return Cents(product), nil
}

// Add sums two amounts.
func (c Cents) Add(other Cents) (Cents, error) {
	sum := int64(c) + int64(other)
	if (other > 0 && sum < int64(c)) || (other < 0 && sum > int64(c)) {
		return 0, ErrOverflow
	}
	return Cents(sum), nil
}

// Decimal returns the amount in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount with two fraction digits, e.g. "10.00".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}
