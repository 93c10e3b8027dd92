package featureflag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryFlags(t *testing.T) {
	ctx := context.Background()
	flags := NewInMemoryFlags(map[string]bool{ProductCostUpdate: true})

	assert.True(t, flags.IsEnabled(ctx, ProductCostUpdate))
	assert.False(t, flags.IsEnabled(ctx, "unknown"))

	flags.SetFlag(ProductCostUpdate, false)
	assert.False(t, flags.IsEnabled(ctx, ProductCostUpdate))
	assert.Equal(t, map[string]bool{ProductCostUpdate: false}, flags.Snapshot())
}
