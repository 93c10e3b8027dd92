// Package featureflag provides feature flag evaluation for business services.
package featureflag

import (
	"context"
	"sync"
)

// Provider evaluates feature flags.
type Provider interface {
	// IsEnabled checks if feature is enabled for context
	IsEnabled(ctx context.Context, flag string) bool
}

// Flag names
const (
	// ProductCostUpdate publishes derived unit costs of purchase lines
	// flagged with updateProductCost back to the product master.
	ProductCostUpdate = "product_cost_update"
)

// InMemoryFlags is a process-wide flag set loaded from configuration.
type InMemoryFlags struct {
	mu    sync.RWMutex
	flags map[string]bool
}

// NewInMemoryFlags creates a flag provider with the given initial values.
func NewInMemoryFlags(initial map[string]bool) *InMemoryFlags {
	flags := make(map[string]bool, len(initial))
	for k, v := range initial {
		flags[k] = v
	}
	return &InMemoryFlags{flags: flags}
}

func (f *InMemoryFlags) IsEnabled(ctx context.Context, flag string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.flags[flag]
}

// SetFlag sets a boolean flag (for tests and ops toggles).
func (f *InMemoryFlags) SetFlag(flag string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[flag] = enabled
}

// Snapshot returns a copy of all flags.
func (f *InMemoryFlags) Snapshot() map[string]bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]bool, len(f.flags))
	for k, v := range f.flags {
		out[k] = v
	}
	return out
}

var _ Provider = (*InMemoryFlags)(nil)
