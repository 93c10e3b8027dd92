// Package catalog_repo provides PostgreSQL implementations for the replicated
// reference entity repositories.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"purchases/internal/core/apperror"
	"purchases/internal/core/entity"
	"purchases/internal/infrastructure/storage/postgres"
)

// immutable columns are written on insert only.
var immutable = map[string]bool{"id": true, "created_at": true}

// ReplicaRepo provides persistence for one replicated entity kind.
// It implements domain.ReplicaRepository.
type ReplicaRepo[T entity.Replica] struct {
	txManager  *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	// scoped tables filter name lookups by company_id
	scoped bool
	newFn  func() T
}

// NewReplicaRepo creates a new replica repository.
func NewReplicaRepo[T entity.Replica](
	txManager *postgres.TxManager,
	tableName, entityName string,
	selectCols []string,
	scoped bool,
	newFn func() T,
) *ReplicaRepo[T] {
	return &ReplicaRepo[T]{
		txManager:  txManager,
		tableName:  tableName,
		entityName: entityName,
		selectCols: selectCols,
		scoped:     scoped,
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *ReplicaRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *ReplicaRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

// columnsOf keeps the values of the repository's columns, minus skip.
func (r *ReplicaRepo[T]) columnsOf(item T, skip map[string]bool) (map[string]any, error) {
	data := postgres.StructToMap(item)
	if len(data) == 0 {
		return nil, fmt.Errorf("no db tags found in %s", r.entityName)
	}
	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if skip[col] {
			continue
		}
		val, ok := data[col]
		if !ok {
			continue
		}
		if d, isDecimal := val.(decimal.Decimal); isDecimal {
			val = postgres.Numeric(d)
		}
		filtered[col] = val
	}
	return filtered, nil
}

func (r *ReplicaRepo[T]) insertQuery(item T) (string, []any, error) {
	data, err := r.columnsOf(item, nil)
	if err != nil {
		return "", nil, err
	}
	return r.Builder().Insert(r.tableName).SetMap(data).ToSql()
}

func (r *ReplicaRepo[T]) updateQuery(item T) (string, []any, error) {
	data, err := r.columnsOf(item, immutable)
	if err != nil {
		return "", nil, err
	}
	return r.Builder().
		Update(r.tableName).
		SetMap(data).
		Where(squirrel.Eq{"id": item.GetID()}).
		ToSql()
}

func (r *ReplicaRepo[T]) findByNameQuery(companyID, name string) (string, []any, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"name": name, "active": true})
	if r.scoped {
		q = q.Where(squirrel.Eq{"company_id": companyID})
	}
	return q.Limit(1).ToSql()
}

// GetByID retrieves entity by ID, active or not.
func (r *ReplicaRepo[T]) GetByID(ctx context.Context, entityID string) (T, error) {
	item := r.newFn()

	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{"id": entityID}).
		Limit(1).
		ToSql()
	if err != nil {
		return item, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return item, apperror.NewNotFound(r.entityName, entityID)
		}
		return item, fmt.Errorf("get %s by id: %w", r.entityName, err)
	}
	return item, nil
}

// FindByName retrieves an active entity by name inside a company.
func (r *ReplicaRepo[T]) FindByName(ctx context.Context, companyID, name string) (T, error) {
	item := r.newFn()

	sql, args, err := r.findByNameQuery(companyID, name)
	if err != nil {
		return item, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return item, apperror.NewNotFound(r.entityName, name)
		}
		return item, fmt.Errorf("find %s by name: %w", r.entityName, err)
	}
	return item, nil
}

// Insert creates a new row.
func (r *ReplicaRepo[T]) Insert(ctx context.Context, item T) error {
	sql, args, err := r.insertQuery(item)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(err, r.entityName, item.GetID())
	}
	return nil
}

// Update overwrites an existing row.
func (r *ReplicaRepo[T]) Update(ctx context.Context, item T) error {
	sql, args, err := r.updateQuery(item)
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, r.entityName, item.GetID())
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, item.GetID())
	}
	return nil
}

// SetActive flips the soft-delete flag.
func (r *ReplicaRepo[T]) SetActive(ctx context.Context, entityID string, active bool) error {
	sql, args, err := r.Builder().
		Update(r.tableName).
		Set("active", active).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": entityID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(err, r.entityName, entityID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID)
	}
	return nil
}
