// Package numerator allocates per-company order codes from the pur_sequence
// table. Codes are strictly increasing per (company, kind); a rolled back
// transaction leaves a gap, never a duplicate.
package numerator

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	corenumerator "purchases/internal/core/numerator"
	"purchases/internal/core/tx"
)

// ErrNoTransaction is returned when NextCode runs outside a transaction; the
// row lock would be released before the numbered row is written.
var ErrNoTransaction = errors.New("numerator: NextCode requires a transaction")

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// QuerierFunc returns the querier bound to ctx (the open transaction).
type QuerierFunc func(ctx context.Context) Querier

var _ corenumerator.Generator = (*Service)(nil)

// Service implements corenumerator.Generator on PostgreSQL.
type Service struct {
	detector tx.Detector
	querier  QuerierFunc
}

// New creates a numerator service.
func New(detector tx.Detector, querier QuerierFunc) *Service {
	return &Service{detector: detector, querier: querier}
}

// NextCode locks the (company, kind) row, increments it and returns the new
// value. A missing row is created with last_code = 1. When two first callers
// race on the insert, the loser falls back to the locked path.
func (s *Service) NextCode(ctx context.Context, companyID string, kind corenumerator.Kind) (int64, error) {
	if !s.detector.InTransaction(ctx) {
		return 0, ErrNoTransaction
	}
	q := s.querier(ctx)

	for range 2 {
		var last int64
		err := q.QueryRow(ctx, `
			SELECT last_code FROM pur_sequence
			WHERE company_id = $1 AND type = $2
			FOR UPDATE
		`, companyID, kind).Scan(&last)

		switch {
		case err == nil:
			next := last + 1
			if _, err := q.Exec(ctx, `
				UPDATE pur_sequence SET last_code = $3, updated_at = NOW()
				WHERE company_id = $1 AND type = $2
			`, companyID, kind, next); err != nil {
				return 0, fmt.Errorf("update sequence %s/%d: %w", companyID, kind, err)
			}
			return next, nil

		case errors.Is(err, pgx.ErrNoRows):
			tag, err := q.Exec(ctx, `
				INSERT INTO pur_sequence (company_id, type, last_code)
				VALUES ($1, $2, 1)
				ON CONFLICT (company_id, type) DO NOTHING
			`, companyID, kind)
			if err != nil {
				return 0, fmt.Errorf("create sequence %s/%d: %w", companyID, kind, err)
			}
			if tag.RowsAffected() == 1 {
				return 1, nil
			}
			// Another transaction created the row first; take the locked path.

		default:
			return 0, fmt.Errorf("lock sequence %s/%d: %w", companyID, kind, err)
		}
	}

	return 0, fmt.Errorf("sequence %s/%d: row missing after insert conflict", companyID, kind)
}
