// Package purchase_repo provides the PostgreSQL purchase order repository and
// the outbox writer used by the purchasing service.
package purchase_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"purchases/internal/core/apperror"
	"purchases/internal/domain/purchasing"
	"purchases/internal/infrastructure/storage/postgres"
)

const (
	orderTable      = "pur_order"
	orderLinesTable = "pur_order_product"
	entityName      = "purchase order"
)

// columns never rewritten by Update
var immutable = map[string]bool{"id": true, "company_id": true, "code": true, "created_at": true}

// lineColumns is the COPY column list; line_no keeps input order.
var lineColumns = []string{
	"order_id", "line_no", "product_id", "name", "code",
	"qty", "cost", "amount", "comment", "status",
}

// OrderRepo implements purchasing.Repository.
type OrderRepo struct {
	txManager  *postgres.TxManager
	inserter   *postgres.BatchInserter
	orderCols  []string
	selectLine []string
}

// NewOrderRepo creates a new order repository.
func NewOrderRepo(txManager *postgres.TxManager) *OrderRepo {
	return &OrderRepo{
		txManager:  txManager,
		inserter:   postgres.NewBatchInserter(txManager),
		orderCols:  postgres.DBColumns[purchasing.Order](),
		selectLine: postgres.DBColumns[purchasing.Line](),
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *OrderRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// orderValues maps the order to its columns, decimals as NUMERIC.
func (r *OrderRepo) orderValues(order *purchasing.Order, skip map[string]bool) map[string]any {
	data := postgres.StructToMap(order)
	out := make(map[string]any, len(r.orderCols))
	for _, col := range r.orderCols {
		if skip[col] {
			continue
		}
		out[col] = data[col]
	}
	out["amount"] = postgres.Numeric(order.Amount)
	out["cost"] = postgres.Numeric(order.Cost)
	if !skip["status"] {
		out["status"] = int16(order.Status)
	}
	return out
}

func (r *OrderRepo) insertQuery(order *purchasing.Order) (string, []any, error) {
	return r.Builder().
		Insert(orderTable).
		SetMap(r.orderValues(order, nil)).
		ToSql()
}

func (r *OrderRepo) updateQuery(order *purchasing.Order) (string, []any, error) {
	return r.Builder().
		Update(orderTable).
		SetMap(r.orderValues(order, immutable)).
		Where(squirrel.Eq{"id": order.ID}).
		ToSql()
}

func lineRows(orderID string, lines []purchasing.Line) [][]any {
	rows := make([][]any, 0, len(lines))
	for i, line := range lines {
		rows = append(rows, []any{
			orderID, int32(i + 1), line.ProductID, line.Name, line.Code,
			postgres.Numeric(line.Qty), postgres.Numeric(line.Cost), postgres.Numeric(line.Amount),
			line.Comment, line.Status,
		})
	}
	return rows
}

func (r *OrderRepo) selectQuery(orderID string, forUpdate bool) (string, []any, error) {
	q := r.Builder().
		Select(r.orderCols...).
		From(orderTable).
		Where(squirrel.Eq{"id": orderID}).
		Limit(1)
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return q.ToSql()
}

// GetByID retrieves an order with its lines, active or not.
func (r *OrderRepo) GetByID(ctx context.Context, orderID string) (*purchasing.Order, error) {
	return r.get(ctx, orderID, false)
}

// GetByIDForUpdate is GetByID that also locks the order row until the
// surrounding transaction ends.
func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, orderID string) (*purchasing.Order, error) {
	return r.get(ctx, orderID, true)
}

func (r *OrderRepo) get(ctx context.Context, orderID string, forUpdate bool) (*purchasing.Order, error) {
	sql, args, err := r.selectQuery(orderID, forUpdate)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)

	var order purchasing.Order
	if err := pgxscan.Get(ctx, querier, &order, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(entityName, orderID)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	lines, err := r.getLines(ctx, querier, orderID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines
	return &order, nil
}

func (r *OrderRepo) getLines(ctx context.Context, querier postgres.Querier, orderID string) ([]purchasing.Line, error) {
	sql, args, err := r.Builder().
		Select(r.selectLine...).
		From(orderLinesTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	lines := make([]purchasing.Line, 0)
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return lines, nil
}

// Insert creates the order row.
func (r *OrderRepo) Insert(ctx context.Context, order *purchasing.Order) error {
	sql, args, err := r.insertQuery(order)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(err, entityName, order.ID)
	}
	return nil
}

// Update overwrites the order row.
func (r *OrderRepo) Update(ctx context.Context, order *purchasing.Order) error {
	sql, args, err := r.updateQuery(order)
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, entityName, order.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(entityName, order.ID)
	}
	return nil
}

// ReplaceLines deletes the order's lines and bulk inserts lines with COPY.
func (r *OrderRepo) ReplaceLines(ctx context.Context, orderID string, lines []purchasing.Line) error {
	querier := r.txManager.GetQuerier(ctx)

	deleteSQL := "DELETE FROM " + orderLinesTable + " WHERE order_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, orderID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}

	if _, err := r.inserter.CopyFromSlice(ctx, orderLinesTable, lineColumns, lineRows(orderID, lines)); err != nil {
		return postgres.TranslateError(fmt.Errorf("insert lines: %w", err), entityName, orderID)
	}
	return nil
}

// SetActive flips the soft-delete flag.
func (r *OrderRepo) SetActive(ctx context.Context, orderID string, active bool) error {
	sql, args, err := r.Builder().
		Update(orderTable).
		Set("active", active).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, entityName, orderID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(entityName, orderID)
	}
	return nil
}

var _ purchasing.Repository = (*OrderRepo)(nil)
