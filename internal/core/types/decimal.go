// Package types provides common numeric types shared by orders and replication payloads.
package types

import (
	"github.com/shopspring/decimal"
)

// CostScale is the number of fractional digits kept for derived unit costs.
const CostScale int32 = 4

func init() {
	// Peer services exchange quantities and money as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Money represents a monetary value with full precision.
type Money = decimal.Decimal

// Quantity is a line quantity. Fractional quantities are allowed (weighed goods).
type Quantity = decimal.Decimal

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Sum adds values in order.
func Sum(values ...Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// UnitCost derives the per-unit cost of a line. ok is false for a zero quantity.
func UnitCost(amount Money, qty Quantity) (cost Money, ok bool) {
	if qty.IsZero() {
		return decimal.Zero, false
	}
	return amount.DivRound(qty, CostScale), true
}
