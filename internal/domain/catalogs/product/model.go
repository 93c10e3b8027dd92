// Package product provides the replicated Product entity.
package product

import (
	"context"

	"purchases/internal/core/entity"
	"purchases/internal/core/tx"
	"purchases/internal/core/types"
	"purchases/internal/domain"
)

// Product is a product master record replicated from the products service.
// Purchase order lines snapshot its name and code.
type Product struct {
	entity.BaseReplica
	entity.CompanyScoped

	ProductCategoryID *string     `db:"product_category_id" json:"productCategoryId,omitempty" validate:"omitempty,uuid"`
	Code              string      `db:"code" json:"code" validate:"max=50"`
	Description       string      `db:"description" json:"description" validate:"max=250"`
	Cost              types.Money `db:"cost" json:"cost"`
	Price             types.Money `db:"price" json:"price"`
	Unit              string      `db:"unit" json:"unit" validate:"max=20"`
	Type              int16       `db:"type" json:"type" validate:"gte=0"`
	Enable4Sale       bool        `db:"enable4sale" json:"enable4Sale"`
}

// Validate implements entity.Validatable interface.
func (p *Product) Validate(ctx context.Context) error {
	return domain.ValidateStruct(p)
}

// Repository defines the interface for Product persistence.
type Repository = domain.ReplicaRepository[*Product]

// Service applies product replication.
type Service = domain.ReplicaService[*Product]

// NewService creates a new Product service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return domain.NewReplicaService(domain.ReplicaServiceConfig[*Product]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "product",
		UniqueName: true,
	})
}
