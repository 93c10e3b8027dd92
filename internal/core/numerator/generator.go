// Package numerator provides domain contracts for per-company code sequences.
// Implementations live in pkg/numerator.
package numerator

import (
	"context"
)

// Kind identifies an independent sequence inside one company.
type Kind int16

const (
	// KindPurchaseOrder numbers purchase orders.
	KindPurchaseOrder Kind = 1
)

// Generator hands out codes that are strictly increasing per (company, kind).
// Gaps are allowed, duplicates are not.
type Generator interface {
	// NextCode allocates the next code. It must run inside the transaction that
	// persists the numbered row.
	NextCode(ctx context.Context, companyID string, kind Kind) (int64, error)
}
