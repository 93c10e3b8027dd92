package purchase_repo

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchases/internal/core/types"
	"purchases/internal/domain/purchasing"
	"purchases/internal/infrastructure/storage/postgres"
	"purchases/internal/replication"
)

const orderID = "0190a8f2-0000-7000-8000-0000000000c1"

func testOrder() *purchasing.Order {
	return &purchasing.Order{
		ID:        orderID,
		CompanyID: "0190a8f2-0000-7000-8000-00000000000a",
		UserID:    "0190a8f2-0000-7000-8000-0000000000aa",
		Code:      7,
		Amount:    types.MustMoney("12.50"),
		Status:    purchasing.StatusOrder,
		Active:    true,
	}
}

func TestOrderRepo_UpdateQueryKeepsIdentity(t *testing.T) {
	repo := NewOrderRepo(nil)

	sql, args, err := repo.updateQuery(testOrder())
	require.NoError(t, err)

	set, where, ok := strings.Cut(sql, " WHERE ")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(set, "UPDATE pur_order SET "))
	for col := range immutable {
		assert.NotContains(t, set, " "+col+" = ", col)
	}
	assert.True(t, strings.HasPrefix(where, "id = $"))
	assert.Equal(t, orderID, args[len(args)-1])
}

func TestOrderRepo_SelectQueryLocksOnlyForUpdate(t *testing.T) {
	repo := NewOrderRepo(nil)

	sql, args, err := repo.selectQuery(orderID, false)
	require.NoError(t, err)
	assert.NotContains(t, sql, "FOR UPDATE")
	assert.Equal(t, []any{orderID}, args)

	sql, _, err = repo.selectQuery(orderID, true)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, "LIMIT 1 FOR UPDATE"), sql)
}

func TestOrderRepo_InsertQueryEncodesDecimals(t *testing.T) {
	repo := NewOrderRepo(nil)

	sql, args, err := repo.insertQuery(testOrder())
	require.NoError(t, err)
	assert.Contains(t, sql, "INSERT INTO pur_order (")

	var found bool
	for _, arg := range args {
		if n, ok := arg.(pgtype.Numeric); ok && n.Valid && n.Int.Int64() == 1250 && n.Exp == -2 {
			found = true
		}
		_, isStatus := arg.(purchasing.Status)
		assert.False(t, isStatus, "status is sent as int16")
	}
	assert.True(t, found, "amount is sent as NUMERIC")
}

func TestLineRows_PreserveOrder(t *testing.T) {
	lines := []purchasing.Line{
		{ProductID: "p1", Qty: types.MustMoney("2"), Amount: types.MustMoney("4")},
		{ProductID: "p2", Qty: types.MustMoney("1.5"), Amount: types.MustMoney("3")},
	}

	rows := lineRows(orderID, lines)
	require.Len(t, rows, 2)
	for i, row := range rows {
		require.Len(t, row, len(lineColumns))
		assert.Equal(t, orderID, row[0])
		assert.Equal(t, int32(i+1), row[1])
		assert.Equal(t, lines[i].ProductID, row[2])
	}
	assert.Equal(t, postgres.Numeric(types.MustMoney("1.5")), rows[1][5])
}

type recordingPublisher struct {
	events []postgres.DomainEvent
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, events []postgres.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func TestOutboxWriter_Write(t *testing.T) {
	pub := &recordingPublisher{}
	w := &OutboxWriter{publisher: pub}

	env, err := replication.NewEnvelope(replication.SourcePurchases, replication.ProcessMovementDelete,
		[]replication.Ref{{ID: orderID}})
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), orderID, []replication.Envelope{env}))
	require.Len(t, pub.events, 1)

	event := pub.events[0]
	assert.Equal(t, AggregateType, event.AggregateType)
	assert.Equal(t, orderID, event.AggregateID)
	assert.Equal(t, "movementDelete", event.EventType)

	decoded, err := replication.ParseEnvelope(event.Payload)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}
