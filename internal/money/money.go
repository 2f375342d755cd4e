// Package money holds the decimal helpers shared by the allocators. Every
// monetary value in the reconciliation engine is a decimal.Decimal.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// SettlementTolerance is one cent-equivalent. Two independently summed paths
// may disagree in the last digit; differences below this are treated as zero.
var SettlementTolerance = decimal.New(1, -2)

// StorageScale is the number of fractional digits persisted for derived costs.
const StorageScale int32 = 6

var ErrInvalidAmount = errors.New("invalid_amount")

// Parse reads a decimal amount from its string form.
func Parse(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return value, nil
}

// Sum adds the given values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// FloorZero returns v, or zero when v is negative.
func FloorZero(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// IsSettled reports whether |v| is below tolerance.
func IsSettled(v, tolerance decimal.Decimal) bool {
	return v.Abs().LessThan(tolerance)
}

// WithinTolerance reports whether a and b differ by no more than tolerance.
func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// SafeDiv divides a by b, returning zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// Deref returns the pointed-to value or zero.
func Deref(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}
