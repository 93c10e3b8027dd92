package purchasing

import (
	"context"

	"purchases/internal/replication"
)

// Repository defines persistence for purchase orders.
type Repository interface {
	// GetByID retrieves an order with its lines, active or not.
	// Returns an apperror NOT_FOUND error when absent.
	GetByID(ctx context.Context, id string) (*Order, error)

	// GetByIDForUpdate is GetByID holding a row lock until the transaction
	// ends. Must run inside a transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*Order, error)

	// Insert creates the order row (lines are written by ReplaceLines).
	Insert(ctx context.Context, order *Order) error

	// Update overwrites the order row.
	Update(ctx context.Context, order *Order) error

	// ReplaceLines deletes every line of the order and bulk inserts lines.
	// Must run inside a transaction.
	ReplaceLines(ctx context.Context, orderID string, lines []Line) error

	// SetActive flips the soft-delete flag. A foreign key violation is
	// reported as an apperror IN_USE error.
	SetActive(ctx context.Context, id string, active bool) error
}

// Outbox stores replication messages in the caller's transaction.
type Outbox interface {
	Write(ctx context.Context, orderID string, envs []replication.Envelope) error
}

// Sender delivers replication messages straight to the queue.
type Sender interface {
	SendAll(ctx context.Context, envs []replication.Envelope) []replication.Outcome
}
