package domain

import (
	"context"
	"fmt"
	"time"

	"purchases/internal/core/apperror"
	"purchases/internal/core/entity"
	"purchases/internal/core/id"
	"purchases/internal/core/tx"
	"purchases/pkg/logger"
)

// ReplicaService applies replicated changes of one reference entity kind.
// It is the collaborator the reception worker calls for *Update / *Delete
// processes.
type ReplicaService[T entity.Replica] struct {
	repo      ReplicaRepository[T]
	txManager tx.Manager
	now       func() time.Time

	// entityName for error messages and log lines
	entityName string
	// uniqueName rejects a create when an active row with the same name exists
	uniqueName bool
}

// ReplicaServiceConfig configures the replica service.
type ReplicaServiceConfig[T entity.Replica] struct {
	Repo       ReplicaRepository[T]
	TxManager  tx.Manager
	EntityName string
	UniqueName bool
}

// NewReplicaService creates a new replica service.
func NewReplicaService[T entity.Replica](cfg ReplicaServiceConfig[T]) *ReplicaService[T] {
	return &ReplicaService[T]{
		repo:       cfg.Repo,
		txManager:  cfg.TxManager,
		now:        func() time.Time { return time.Now().UTC() },
		entityName: cfg.EntityName,
		uniqueName: cfg.UniqueName,
	}
}

// EntityName returns the entity name used in logs and errors.
func (s *ReplicaService[T]) EntityName() string {
	return s.entityName
}

// UpdateBatch upserts every item and reports per-item outcomes.
func (s *ReplicaService[T]) UpdateBatch(ctx context.Context, items []T) *ProcessSummary {
	return ForEach(ctx, s.entityName+" updateBatch", items,
		func(item T) string { return "name=" + item.GetName() },
		s.Update)
}

// RemoveBatch soft-deletes every id and reports per-item outcomes.
func (s *ReplicaService[T]) RemoveBatch(ctx context.Context, ids []string) *ProcessSummary {
	return ForEach(ctx, s.entityName+" removeBatch", ids,
		func(id string) string { return "id=" + id },
		s.Remove)
}

// Update overwrites the row identified by item's ID. A missing ID, or an ID
// unknown to this service, falls back to creation.
func (s *ReplicaService[T]) Update(ctx context.Context, item T) error {
	if item.GetID() == "" {
		return s.Create(ctx, item)
	}

	if _, err := s.repo.GetByID(ctx, item.GetID()); err != nil {
		if apperror.IsNotFound(err) {
			logger.Warn(ctx, "update: entity not found, the creation will be executed",
				"entity", s.entityName, "id", item.GetID())
			return s.Create(ctx, item)
		}
		return err
	}

	if err := item.Validate(ctx); err != nil {
		return err
	}

	if replica, ok := any(item).(interface{ Activate(time.Time) }); ok {
		replica.Activate(s.now())
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, item); err != nil {
			return fmt.Errorf("update %s: %w", s.entityName, err)
		}
		return nil
	})
}

// Create inserts a new row after checking name uniqueness.
func (s *ReplicaService[T]) Create(ctx context.Context, item T) error {
	if err := item.Validate(ctx); err != nil {
		return err
	}

	if s.uniqueName {
		_, err := s.repo.FindByName(ctx, item.GetCompanyID(), item.GetName())
		switch {
		case err == nil:
			logger.Warn(ctx, "create: name already exists", "entity", s.entityName, "name", item.GetName())
			return apperror.NewAlreadyExists(s.entityName, "name", item.GetName())
		case !apperror.IsNotFound(err):
			return err
		}
	}

	if item.GetID() == "" {
		item.SetID(id.NewString())
	}
	if replica, ok := any(item).(interface{ Activate(time.Time) }); ok {
		replica.Activate(s.now())
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, item); err != nil {
			return fmt.Errorf("create %s: %w", s.entityName, err)
		}
		return nil
	})
}

// Remove soft-deletes the row. Removing an already inactive row succeeds so
// that redelivered delete jobs are harmless.
func (s *ReplicaService[T]) Remove(ctx context.Context, entityID string) error {
	existing, err := s.repo.GetByID(ctx, entityID)
	if err != nil {
		return err
	}
	if !existing.IsActive() {
		return nil
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.SetActive(ctx, entityID, false); err != nil {
			return fmt.Errorf("remove %s: %w", s.entityName, err)
		}
		return nil
	})
}
