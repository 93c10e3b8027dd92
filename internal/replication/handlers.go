package replication

import (
	"context"

	"purchases/internal/domain"
)

// BatchUpdater is a domain service accepting replicated upserts.
type BatchUpdater[T any] interface {
	EntityName() string
	UpdateBatch(ctx context.Context, items []T) *domain.ProcessSummary
}

// BatchRemover is a domain service accepting replicated deletes.
type BatchRemover interface {
	EntityName() string
	RemoveBatch(ctx context.Context, ids []string) *domain.ProcessSummary
}

// UpdateHandler decodes a JSON array of T and applies it with svc.
func UpdateHandler[T any](svc BatchUpdater[T]) Handler {
	return HandlerFunc(func(ctx context.Context, env Envelope) (Result, error) {
		var items []T
		if err := env.Decode(&items); err != nil {
			return Result{}, err
		}
		summary := svc.UpdateBatch(ctx, items)
		return Result{
			Process: env.Process,
			Message: "update " + svc.EntityName() + " executed",
			Summary: summary,
		}, nil
	})
}

// RemoveHandler decodes a JSON array of {"id": ...} and removes them with svc.
func RemoveHandler(svc BatchRemover) Handler {
	return HandlerFunc(func(ctx context.Context, env Envelope) (Result, error) {
		var refs []Ref
		if err := env.Decode(&refs); err != nil {
			return Result{}, err
		}
		ids := make([]string, 0, len(refs))
		for _, ref := range refs {
			ids = append(ids, ref.ID)
		}
		summary := svc.RemoveBatch(ctx, ids)
		return Result{
			Process: env.Process,
			Message: "delete " + svc.EntityName() + " executed",
			Summary: summary,
		}, nil
	})
}
