// Package productcategory provides the replicated ProductCategory entity.
package productcategory

import (
	"context"

	"purchases/internal/core/entity"
	"purchases/internal/core/tx"
	"purchases/internal/domain"
)

// ProductCategory is a company scoped lookup value replicated from its owning service.
type ProductCategory struct {
	entity.BaseReplica
	entity.CompanyScoped
}

// Validate implements entity.Validatable interface.
func (e *ProductCategory) Validate(ctx context.Context) error {
	return domain.ValidateStruct(e)
}

// Repository defines the interface for ProductCategory persistence.
type Repository = domain.ReplicaRepository[*ProductCategory]

// Service applies product category replication.
type Service = domain.ReplicaService[*ProductCategory]

// NewService creates a new ProductCategory service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return domain.NewReplicaService(domain.ReplicaServiceConfig[*ProductCategory]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "product category",
		UniqueName: true,
	})
}
