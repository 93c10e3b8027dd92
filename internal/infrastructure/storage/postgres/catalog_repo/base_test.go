package catalog_repo

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchases/internal/core/types"
	"purchases/internal/domain/catalogs/company"
	"purchases/internal/domain/catalogs/product"
	"purchases/internal/domain/catalogs/user"
)

const (
	companyID = "0190a8f2-0000-7000-8000-00000000000a"
	userID    = "0190a8f2-0000-7000-8000-0000000000aa"
)

func TestReplicaRepo_InsertQuery(t *testing.T) {
	repo := NewCompanyRepo(nil)

	c := &company.Company{}
	c.ID = companyID
	c.Name = "Acme"
	c.Activate(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	sql, args, err := repo.insertQuery(c)
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO pur_company (active,created_at,id,name,updated_at) VALUES ($1,$2,$3,$4,$5)", sql)
	require.Len(t, args, 5)
	assert.Equal(t, true, args[0])
	assert.Equal(t, companyID, args[2])
	assert.Equal(t, "Acme", args[3])
}

func TestReplicaRepo_UpdateQuerySkipsImmutableColumns(t *testing.T) {
	repo := NewUserRepo(nil)

	u := &user.User{Email: "ann@example.com", Status: 1}
	u.ID = userID
	u.Name = "Ann"
	u.CompanyID = companyID

	sql, args, err := repo.updateQuery(u)
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE pur_user SET active = $1, company_id = $2, email = $3, name = $4, status = $5, updated_at = $6 WHERE id = $7",
		sql)
	assert.NotContains(t, sql, "created_at")
	assert.Equal(t, userID, args[len(args)-1])
}

func TestReplicaRepo_FindByNameQuery(t *testing.T) {
	sql, args, err := NewUserRepo(nil).findByNameQuery(companyID, "Ann")
	require.NoError(t, err)
	assert.Contains(t, sql, "company_id = $")
	assert.Contains(t, args, companyID)

	sql, args, err = NewCompanyRepo(nil).findByNameQuery("", "Acme")
	require.NoError(t, err)
	assert.NotContains(t, sql, "company_id")
	assert.Equal(t, []any{true, "Acme"}, args)
}

func TestReplicaRepo_Columns(t *testing.T) {
	repo := NewUserRepo(nil)
	assert.ElementsMatch(t,
		[]string{"id", "name", "active", "created_at", "updated_at", "company_id", "email", "status"},
		repo.selectCols)
}

func TestReplicaRepo_DecimalColumnsEncodeAsNumeric(t *testing.T) {
	p := &product.Product{Code: "P-1", Cost: types.MustMoney("12.50"), Price: types.MustMoney("20")}
	p.ID = userID
	p.Name = "Bolt"
	p.CompanyID = companyID

	data, err := NewProductRepo(nil).columnsOf(p, nil)
	require.NoError(t, err)

	cost, ok := data["cost"].(pgtype.Numeric)
	require.True(t, ok)
	assert.True(t, cost.Valid)
	assert.EqualValues(t, 1250, cost.Int.Int64())
	assert.EqualValues(t, -2, cost.Exp)
	assert.Equal(t, "P-1", data["code"])
}
