package ledger

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in the smallest unit (fixed point, never float).
type Amount int64

// MaxAmount is the largest representable amount.
const MaxAmount Amount = math.MaxInt64

var (
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrAmountOverflow  = errors.New("amount overflows the ledger range")
	ErrAmountPrecision = errors.New("amount has more decimal places than the ledger unit")
)

// IsZero reports whether nothing is held.
func (a Amount) IsZero() bool {
	return a == 0
}

// Add returns a+b, failing instead of wrapping around.
func (a Amount) Add(b Amount) (Amount, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, ErrAmountOverflow
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

// Sub returns a-b, failing instead of wrapping around.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b == math.MinInt64 {
		return 0, ErrAmountOverflow
	}
	return a.Add(-b)
}

// Max returns the larger of a and b.
func Max(a, b Amount) Amount {
	if a > b {
		return a
	}
	return b
}

// ParseAmount converts a decimal string in major units ("1.25") into smallest
// units using the given number of decimals.
func ParseAmount(s string, decimals int32) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}

	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrAmountPrecision
	}
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, ErrAmountOverflow
	}
	return Amount(scaled.IntPart()), nil
}

// Format renders the amount in major units with the given number of decimals.
func (a Amount) Format(decimals int32) string {
	return decimal.New(int64(a), -decimals).String()
}
