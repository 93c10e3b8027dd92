package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// BatchInserter bulk-inserts rows with the COPY protocol inside the caller's
// transaction.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice inserts rows (each matching columns) into table.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	t := b.txManager.GetTx(ctx)
	if t == nil {
		return 0, errors.New("CopyFromSlice requires transaction context")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return t.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

// Numeric converts a decimal to the pgx NUMERIC value used by COPY and
// parameterised statements.
func Numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
