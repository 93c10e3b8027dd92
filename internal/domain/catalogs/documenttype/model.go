// Package documenttype provides the replicated DocumentType entity.
package documenttype

import (
	"context"

	"purchases/internal/core/entity"
	"purchases/internal/core/tx"
	"purchases/internal/domain"
)

// DocumentType is a company scoped lookup value replicated from its owning service.
type DocumentType struct {
	entity.BaseReplica
	entity.CompanyScoped
}

// Validate implements entity.Validatable interface.
func (e *DocumentType) Validate(ctx context.Context) error {
	return domain.ValidateStruct(e)
}

// Repository defines the interface for DocumentType persistence.
type Repository = domain.ReplicaRepository[*DocumentType]

// Service applies document type replication.
type Service = domain.ReplicaService[*DocumentType]

// NewService creates a new DocumentType service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return domain.NewReplicaService(domain.ReplicaServiceConfig[*DocumentType]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "document type",
		UniqueName: true,
	})
}
