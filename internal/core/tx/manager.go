// Package tx provides transaction management abstractions.
// Domain services depend on Manager; the pgx implementation lives in
// infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Detector reports whether ctx carries an open transaction. Components that
// must only run inside the caller's transaction (sequence allocation, outbox
// writes) check it before touching the database.
type Detector interface {
	InTransaction(ctx context.Context) bool
}
