package numerator

import (
	"context"
	"fmt"
	"sync"
)

// MockGenerator is an in-memory Generator for unit tests.
type MockGenerator struct {
	mu   sync.Mutex
	last map[string]int64

	// NextCodeFunc overrides the default counter when set.
	NextCodeFunc func(ctx context.Context, companyID string, kind Kind) (int64, error)
}

// NextCode implements Generator.
func (m *MockGenerator) NextCode(ctx context.Context, companyID string, kind Kind) (int64, error) {
	if m.NextCodeFunc != nil {
		return m.NextCodeFunc(ctx, companyID, kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		m.last = make(map[string]int64)
	}
	key := fmt.Sprintf("%s/%d", companyID, kind)
	m.last[key]++
	return m.last[key], nil
}

// Ensure compile-time interface compliance.
var _ Generator = (*MockGenerator)(nil)
