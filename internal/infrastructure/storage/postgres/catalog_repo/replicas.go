package catalog_repo

import (
	"purchases/internal/domain/catalogs/company"
	"purchases/internal/domain/catalogs/documenttype"
	"purchases/internal/domain/catalogs/product"
	"purchases/internal/domain/catalogs/productcategory"
	"purchases/internal/domain/catalogs/user"
	"purchases/internal/infrastructure/storage/postgres"
)

const (
	companyTable         = "pur_company"
	userTable            = "pur_user"
	productTable         = "pur_product"
	productCategoryTable = "pur_product_category"
	documentTypeTable    = "pur_document_type"
)

// NewCompanyRepo creates a new company repository.
func NewCompanyRepo(txm *postgres.TxManager) *ReplicaRepo[*company.Company] {
	return NewReplicaRepo(txm, companyTable, "company",
		postgres.DBColumns[company.Company](), false,
		func() *company.Company { return &company.Company{} })
}

// NewUserRepo creates a new user repository.
func NewUserRepo(txm *postgres.TxManager) *ReplicaRepo[*user.User] {
	return NewReplicaRepo(txm, userTable, "user",
		postgres.DBColumns[user.User](), true,
		func() *user.User { return &user.User{} })
}

// NewProductRepo creates a new product repository.
func NewProductRepo(txm *postgres.TxManager) *ReplicaRepo[*product.Product] {
	return NewReplicaRepo(txm, productTable, "product",
		postgres.DBColumns[product.Product](), true,
		func() *product.Product { return &product.Product{} })
}

// NewProductCategoryRepo creates a new product category repository.
func NewProductCategoryRepo(txm *postgres.TxManager) *ReplicaRepo[*productcategory.ProductCategory] {
	return NewReplicaRepo(txm, productCategoryTable, "product category",
		postgres.DBColumns[productcategory.ProductCategory](), true,
		func() *productcategory.ProductCategory { return &productcategory.ProductCategory{} })
}

// NewDocumentTypeRepo creates a new document type repository.
func NewDocumentTypeRepo(txm *postgres.TxManager) *ReplicaRepo[*documenttype.DocumentType] {
	return NewReplicaRepo(txm, documentTypeTable, "document type",
		postgres.DBColumns[documenttype.DocumentType](), true,
		func() *documenttype.DocumentType { return &documenttype.DocumentType{} })
}
