package app

import (
	"purchases/internal/core/entity"
	"purchases/internal/domain"
	"purchases/internal/domain/catalogs/company"
	"purchases/internal/domain/catalogs/documenttype"
	"purchases/internal/domain/catalogs/product"
	"purchases/internal/domain/catalogs/productcategory"
	"purchases/internal/domain/catalogs/user"
	"purchases/internal/infrastructure/storage/postgres"
	"purchases/internal/infrastructure/storage/postgres/catalog_repo"
	"purchases/internal/replication"
)

// NewRegistry binds every inbound replication process to its catalog service.
func NewRegistry(txm *postgres.TxManager) *replication.Registry {
	r := replication.NewRegistry()

	registerReplica(r, replication.ProcessCompanyUpdate, replication.ProcessCompanyDelete,
		company.NewService(catalog_repo.NewCompanyRepo(txm), txm))
	registerReplica(r, replication.ProcessUserUpdate, replication.ProcessUserDelete,
		user.NewService(catalog_repo.NewUserRepo(txm), txm))
	registerReplica(r, replication.ProcessDocumentTypeUpdate, replication.ProcessDocumentTypeDelete,
		documenttype.NewService(catalog_repo.NewDocumentTypeRepo(txm), txm))
	registerReplica(r, replication.ProcessProductUpdate, replication.ProcessProductDelete,
		product.NewService(catalog_repo.NewProductRepo(txm), txm))
	registerReplica(r, replication.ProcessProductCategoryUpdate, replication.ProcessProductCategoryDelete,
		productcategory.NewService(catalog_repo.NewProductCategoryRepo(txm), txm))

	return r
}

func registerReplica[T entity.Replica](r *replication.Registry, update, remove replication.Process, svc *domain.ReplicaService[T]) {
	r.Register(update, replication.UpdateHandler[T](svc))
	r.Register(remove, replication.RemoveHandler(svc))
}
