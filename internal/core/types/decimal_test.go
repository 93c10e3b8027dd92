package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitCost(t *testing.T) {
	cost, ok := UnitCost(MustMoney("100"), MustMoney("3"))
	require.True(t, ok)
	assert.Equal(t, "33.3333", cost.String())

	_, ok = UnitCost(MustMoney("100"), Zero())
	assert.False(t, ok)
}

func TestSum(t *testing.T) {
	assert.True(t, Sum(MustMoney("1.5"), MustMoney("2.25")).Equal(MustMoney("3.75")))
	assert.True(t, Sum().IsZero())
}

func TestMoneyMarshalsAsNumber(t *testing.T) {
	b, err := json.Marshal(struct {
		Qty Quantity `json:"qty"`
	}{Qty: MustMoney("3")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"qty":3}`, string(b))
}
