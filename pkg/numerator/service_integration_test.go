//go:build integration

package numerator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	corenumerator "purchases/internal/core/numerator"
	"purchases/internal/infrastructure/storage/postgres/pgtest"
)

const itCompany = "0190a8f2-0000-7000-8000-0000000000c1"

func newPostgresService(d *pgtest.DB) *Service {
	return New(d.TxManager, func(ctx context.Context) Querier {
		return d.TxManager.GetQuerier(ctx)
	})
}

func TestNextCode_ConcurrentCallersGetDistinctCodes(t *testing.T) {
	d := pgtest.New(t)
	svc := newPostgresService(d)
	ctx := context.Background()

	const callers = 20
	var (
		mu    sync.Mutex
		codes []int64
	)
	var g errgroup.Group
	for range callers {
		g.Go(func() error {
			return d.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
				code, err := svc.NextCode(ctx, itCompany, corenumerator.KindPurchaseOrder)
				if err != nil {
					return err
				}
				mu.Lock()
				codes = append(codes, code)
				mu.Unlock()
				return nil
			})
		})
	}
	require.NoError(t, g.Wait())

	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	require.Len(t, codes, callers)
	for i, code := range codes {
		assert.EqualValues(t, i+1, code)
	}
}

func TestNextCode_RollbackLeavesNoDuplicate(t *testing.T) {
	d := pgtest.New(t)
	svc := newPostgresService(d)
	ctx := context.Background()

	next := func() int64 {
		var code int64
		require.NoError(t, d.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
			var err error
			code, err = svc.NextCode(ctx, itCompany, corenumerator.KindPurchaseOrder)
			return err
		}))
		return code
	}

	assert.EqualValues(t, 1, next())

	errAbort := errors.New("abort")
	err := d.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := svc.NextCode(ctx, itCompany, corenumerator.KindPurchaseOrder)
		require.NoError(t, err)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	assert.EqualValues(t, 2, next())
}

func TestNextCode_OutsideTransaction(t *testing.T) {
	d := pgtest.New(t)
	_, err := newPostgresService(d).NextCode(context.Background(), itCompany, corenumerator.KindPurchaseOrder)
	assert.ErrorIs(t, err, ErrNoTransaction)
}
