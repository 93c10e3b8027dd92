// Package context carries request- and job-scoped values through
// context.Context: the trace of an ops request, the replication job being
// processed and the acting user.
package context

import "context"

// TraceContext identifies the call chain of an ops request.
type TraceContext struct {
	TraceID   string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns the TraceContext, or nil.
func GetTrace(ctx context.Context) *TraceContext {
	t, _ := ctx.Value(traceContextKey{}).(*TraceContext)
	return t
}
