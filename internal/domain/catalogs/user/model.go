// Package user provides the replicated User entity.
package user

import (
	"context"

	"purchases/internal/core/entity"
	"purchases/internal/core/tx"
	"purchases/internal/domain"
)

// User is an account replicated from the administration service. Purchase
// orders reference the user that issued them.
type User struct {
	entity.BaseReplica
	entity.CompanyScoped

	Email  string `db:"email" json:"email" validate:"required,email,max=50"`
	Status int16  `db:"status" json:"status" validate:"gte=0"`
}

// Validate implements entity.Validatable interface.
func (u *User) Validate(ctx context.Context) error {
	return domain.ValidateStruct(u)
}

// Repository defines the interface for User persistence.
type Repository = domain.ReplicaRepository[*User]

// Service applies user replication.
type Service = domain.ReplicaService[*User]

// NewService creates a new User service. Several users may share a display
// name, so no uniqueness check is applied.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return domain.NewReplicaService(domain.ReplicaServiceConfig[*User]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "user",
	})
}
