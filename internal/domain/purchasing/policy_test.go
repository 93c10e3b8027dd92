package purchasing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockPolicy_Default(t *testing.T) {
	p, err := NewStockPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DefaultStockRule, p.Rule())

	expected := map[Status]bool{
		StatusCancelled: false,
		StatusNew:       false,
		StatusQuotation: false,
		StatusOrder:     true,
		StatusInvoiced:  false,
		StatusPaid:      true,
	}
	for status, want := range expected {
		got, err := p.Affects(status)
		require.NoError(t, err)
		assert.Equal(t, want, got, status.String())
	}
}

func TestStockPolicy_Invoiced(t *testing.T) {
	p := MustStockPolicy(InvoicedStockRule)

	got, err := p.Affects(StatusInvoiced)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = p.Affects(StatusQuotation)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestStockPolicy_RejectsBadRules(t *testing.T) {
	_, err := NewStockPolicy(`status in [`)
	assert.Error(t, err)

	_, err = NewStockPolicy(`status + "x"`)
	assert.Error(t, err, "non-bool output")

	_, err = NewStockPolicy(`amount > 10`)
	assert.Error(t, err, "undeclared variable")
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusNew, StatusNew, true},
		{StatusNew, StatusQuotation, true},
		{StatusNew, StatusOrder, true},
		{StatusQuotation, StatusOrder, true},
		{StatusOrder, StatusInvoiced, true},
		{StatusInvoiced, StatusPaid, true},
		{StatusOrder, StatusCancelled, true},
		{StatusOrder, StatusNew, false},
		{StatusPaid, StatusPaid, true},
		{StatusPaid, StatusCancelled, false},
		{StatusCancelled, StatusNew, false},
		{StatusNew, Status(9), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "QUOTATION", StatusQuotation.String())
	assert.Equal(t, "Status(9)", Status(9).String())
	assert.True(t, StatusPaid.IsTerminal())
	assert.False(t, StatusInvoiced.IsTerminal())
}
