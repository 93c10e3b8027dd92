package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"purchases/internal/core/apperror"
)

func TestTranslateError(t *testing.T) {
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "fk_order_product"}
	uq := &pgconn.PgError{Code: "23505", ConstraintName: "uq_company_name"}
	other := errors.New("connection reset")

	assert.NoError(t, TranslateError(nil, "order", "o1"))
	assert.True(t, apperror.IsNotFound(TranslateError(pgx.ErrNoRows, "order", "o1")))
	assert.True(t, apperror.IsInUse(TranslateError(fmt.Errorf("update: %w", fk), "order", "o1")))
	assert.True(t, apperror.IsAlreadyExists(TranslateError(uq, "company", "c1")))
	assert.Equal(t, other, TranslateError(other, "order", "o1"))

	assert.True(t, IsForeignKeyViolation(fmt.Errorf("wrapped: %w", fk)))
	assert.False(t, IsForeignKeyViolation(uq))
}
