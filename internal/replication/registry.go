package replication

import (
	"context"
	"fmt"
	"sort"

	"purchases/internal/domain"
)

// Result is what a handler reports for one job.
type Result struct {
	Process Process                `json:"process"`
	Message string                 `json:"message"`
	Summary *domain.ProcessSummary `json:"summary,omitempty"`
}

// Handler applies one received envelope.
type Handler interface {
	Handle(ctx context.Context, env Envelope) (Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env Envelope) (Result, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, env Envelope) (Result, error) {
	return f(ctx, env)
}

// Registry maps a process to its handler. It is filled once at startup and
// read concurrently afterwards.
type Registry struct {
	handlers map[Process]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Process]Handler)}
}

// Register binds h to process. Registering a process twice panics: it is a
// wiring bug.
func (r *Registry) Register(process Process, h Handler) {
	if _, exists := r.handlers[process]; exists {
		panic(fmt.Sprintf("replication: handler for %q already registered", process))
	}
	r.handlers[process] = h
}

// Lookup returns the handler for process.
func (r *Registry) Lookup(process Process) (Handler, bool) {
	h, ok := r.handlers[process]
	return h, ok
}

// Processes lists registered processes, sorted.
func (r *Registry) Processes() []Process {
	out := make([]Process, 0, len(r.handlers))
	for p := range r.handlers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
