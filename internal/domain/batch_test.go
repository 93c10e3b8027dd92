package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForEach_CountsAndOrder(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6}
	var seen []int

	summary := ForEach(context.Background(), "test", items,
		func(i int) string { return fmt.Sprintf("n=%d", i) },
		func(_ context.Context, i int) error {
			seen = append(seen, i)
			if i%3 == 0 {
				return errors.New("divisible by three")
			}
			return nil
		})

	assert.Equal(t, items, seen, "items must be processed sequentially in input order")
	assert.Equal(t, len(items), summary.Total)
	assert.Equal(t, len(items), summary.OKCount+summary.KOCount)
	assert.Equal(t, 3, summary.KOCount)
	assert.Equal(t, []string{
		"(0) n=0, error=divisible by three",
		"(3) n=3, error=divisible by three",
		"(6) n=6, error=divisible by three",
	}, summary.KODetails)
	assert.Equal(t, "(1) n=1, message=OK", summary.OKDetails[0])
	assert.Equal(t, "(5) n=5, message=OK", summary.OKDetails[3])
}

func TestForEach_EmptyBatch(t *testing.T) {
	summary := ForEach(context.Background(), "test", []string{},
		func(s string) string { return s },
		func(context.Context, string) error { return nil })

	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 0, summary.Processed())
	assert.Equal(t, "total=0 ok=0 ko=0", summary.String())
}

func TestForEach_AllFail(t *testing.T) {
	for _, n := range []int{1, 10, 100} {
		items := make([]int, n)
		summary := ForEach(context.Background(), "test", items,
			func(int) string { return "x" },
			func(context.Context, int) error { return errors.New("boom") })
		assert.Equal(t, n, summary.KOCount)
		assert.Equal(t, n, summary.Processed())
		assert.Empty(t, summary.OKDetails)
	}
}
