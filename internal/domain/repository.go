package domain

import (
	"context"

	"purchases/internal/core/entity"
)

// ReplicaRepository defines persistence for replicated reference entities.
// Lookups return an apperror NOT_FOUND error when the row is absent.
type ReplicaRepository[T entity.Replica] interface {
	// GetByID retrieves entity by ID, active or not.
	GetByID(ctx context.Context, id string) (T, error)

	// FindByName retrieves an active entity by name inside a company.
	// companyID is ignored for entities that are not company scoped.
	FindByName(ctx context.Context, companyID, name string) (T, error)

	// Insert creates a new row.
	Insert(ctx context.Context, entity T) error

	// Update overwrites an existing row.
	Update(ctx context.Context, entity T) error

	// SetActive flips the soft-delete flag. A foreign key violation is
	// reported as an apperror IN_USE error.
	SetActive(ctx context.Context, id string, active bool) error
}
