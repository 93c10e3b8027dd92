package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"purchases/internal/core/tx"
	"purchases/pkg/logger"
)

var tracer = otel.Tracer("purchases/postgres")

var (
	_ tx.Manager  = (*TxManager)(nil)
	_ tx.Detector = (*TxManager)(nil)
)

// TxOptions configures transaction behavior.
type TxOptions struct {
	IsolationLevel pgx.TxIsoLevel
	AccessMode     pgx.TxAccessMode
	// StatementTimeout bounds every statement of the transaction (0 = none).
	StatementTimeout time.Duration
}

// DefaultTxOptions returns read-committed, read-write, 30s statement timeout.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel:   pgx.ReadCommitted,
		AccessMode:       pgx.ReadWrite,
		StatementTimeout: 30 * time.Second,
	}
}

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager runs functions in a transaction stored in the context. Nested
// calls join the outer transaction.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager creates a new transaction manager.
func NewTxManager(pool *Pool) *TxManager {
	return &TxManager{pool: pool.Pool}
}

// NewTxManagerFromRawPool creates a transaction manager from a raw pgxpool.Pool.
func NewTxManagerFromRawPool(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

type txKey struct{}

// RunInTransaction executes fn within a transaction with default options.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransactionWithOptions(ctx, DefaultTxOptions(), fn)
}

// RunInTransactionWithOptions executes fn within a transaction. If ctx already
// carries one, fn runs inside it and opts are ignored.
func (m *TxManager) RunInTransactionWithOptions(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "tx",
		trace.WithAttributes(attribute.String("tx.isolation", string(opts.IsolationLevel))))
	defer span.End()

	pgTx, err := m.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   opts.IsolationLevel,
		AccessMode: opts.AccessMode,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin transaction: %w", err)
	}

	if opts.StatementTimeout > 0 {
		if _, err := pgTx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", opts.StatementTimeout.Milliseconds())); err != nil {
			_ = pgTx.Rollback(ctx)
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, pgTx)); err != nil {
		// Roll back on a detached context so a cancelled caller still releases the connection.
		if rbErr := pgTx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetTx returns the transaction stored in ctx, or nil.
func (m *TxManager) GetTx(ctx context.Context) pgx.Tx {
	if t, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return t
	}
	return nil
}

// InTransaction reports whether ctx carries a transaction.
func (m *TxManager) InTransaction(ctx context.Context) bool {
	return m.GetTx(ctx) != nil
}

// GetQuerier returns the transaction in ctx, or the pool outside one.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t
	}
	return m.pool
}

// Ping checks database connectivity.
func (m *TxManager) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}
