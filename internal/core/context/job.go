package context

import (
	"context"
)

// JobContext describes the queue job currently being processed.
type JobContext struct {
	JobID    string
	Queue    string
	Process  string
	Attempts int
}

type jobContextKey struct{}

// WithJob adds JobContext to context.
func WithJob(ctx context.Context, job *JobContext) context.Context {
	return context.WithValue(ctx, jobContextKey{}, job)
}

// GetJob returns JobContext from context.
func GetJob(ctx context.Context) *JobContext {
	if v, ok := ctx.Value(jobContextKey{}).(*JobContext); ok {
		return v
	}
	return nil
}
