// Package company provides the replicated Company entity. Companies are the
// tenants of the purchases service.
package company

import (
	"context"

	"purchases/internal/core/entity"
	"purchases/internal/core/tx"
	"purchases/internal/domain"
)

// Company is a tenant replicated from the administration service.
type Company struct {
	entity.BaseReplica
}

// GetCompanyID returns the company's own id; names are unique across companies.
func (c *Company) GetCompanyID() string { return c.ID }

// Validate implements entity.Validatable interface.
func (c *Company) Validate(ctx context.Context) error {
	return domain.ValidateStruct(c)
}

// Repository defines the interface for Company persistence.
type Repository = domain.ReplicaRepository[*Company]

// Service applies company replication.
type Service = domain.ReplicaService[*Company]

// NewService creates a new Company service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return domain.NewReplicaService(domain.ReplicaServiceConfig[*Company]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "company",
		UniqueName: true,
	})
}
