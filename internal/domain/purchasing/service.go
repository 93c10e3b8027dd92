package purchasing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"purchases/internal/core/apperror"
	appctx "purchases/internal/core/context"
	"purchases/internal/core/featureflag"
	"purchases/internal/core/id"
	"purchases/internal/core/numerator"
	"purchases/internal/core/tx"
	"purchases/internal/replication"
	"purchases/pkg/logger"
)

// DeliveryMode selects how replication messages leave the service.
type DeliveryMode string

const (
	// DeliveryOutbox writes messages to the outbox table in the order
	// transaction. The relay enqueues them after commit.
	DeliveryOutbox DeliveryMode = "outbox"
	// DeliveryDirect enqueues messages after commit and compensates on failure.
	DeliveryDirect DeliveryMode = "direct"
)

// ParseDeliveryMode converts a configuration value. Empty means outbox.
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch DeliveryMode(s) {
	case "", DeliveryOutbox:
		return DeliveryOutbox, nil
	case DeliveryDirect:
		return DeliveryDirect, nil
	default:
		return "", fmt.Errorf("unknown delivery mode %q", s)
	}
}

// ServiceConfig configures the purchasing service.
type ServiceConfig struct {
	Repo      Repository
	TxManager tx.Manager
	Numerator numerator.Generator
	Policy    *StockPolicy
	Flags     featureflag.Provider
	Mode      DeliveryMode

	// Outbox is required in outbox mode, Sender in direct mode.
	Outbox Outbox
	Sender Sender

	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

// Service provides business operations for purchase orders.
type Service struct {
	repo      Repository
	txManager tx.Manager
	numerator numerator.Generator
	policy    *StockPolicy
	flags     featureflag.Provider
	mode      DeliveryMode
	outbox    Outbox
	sender    Sender
	now       func() time.Time
}

// NewService creates a new purchasing service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Mode == "" {
		cfg.Mode = DeliveryOutbox
	}
	switch cfg.Mode {
	case DeliveryOutbox:
		if cfg.Outbox == nil {
			return nil, errors.New("purchasing: outbox delivery needs an Outbox")
		}
	case DeliveryDirect:
		if cfg.Sender == nil {
			return nil, errors.New("purchasing: direct delivery needs a Sender")
		}
	default:
		return nil, fmt.Errorf("purchasing: unknown delivery mode %q", cfg.Mode)
	}
	if cfg.Policy == nil {
		cfg.Policy = MustStockPolicy(DefaultStockRule)
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:      cfg.Repo,
		txManager: cfg.TxManager,
		numerator: cfg.Numerator,
		policy:    cfg.Policy,
		flags:     cfg.Flags,
		mode:      cfg.Mode,
		outbox:    cfg.Outbox,
		sender:    cfg.Sender,
		now:       cfg.Now,
	}, nil
}

// Get retrieves an order with its lines.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

// Create numbers and stores a new order and publishes its stock effect.
// Missing company and user ids are taken from the context actor.
func (s *Service) Create(ctx context.Context, order *Order) (*Order, error) {
	if order.CompanyID == "" {
		order.CompanyID = appctx.GetCompanyID(ctx)
	}
	if order.UserID == "" {
		order.UserID = appctx.GetUserID(ctx)
	}
	order.Normalize()
	if err := order.Validate(ctx); err != nil {
		return nil, err
	}
	if order.Status == StatusCancelled {
		return nil, apperror.NewValidation("an order cannot be created cancelled").
			WithDetail("field", "status")
	}

	now := s.now()
	order.ID = id.NewString()
	order.Active = true
	order.CreatedAt = now
	order.UpdatedAt = now
	order.Recompute()
	order.bindLines()

	var envs []replication.Envelope
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		code, err := s.numerator.NextCode(ctx, order.CompanyID, numerator.KindPurchaseOrder)
		if err != nil {
			return fmt.Errorf("next code: %w", err)
		}
		order.Code = code

		if err := s.repo.Insert(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.repo.ReplaceLines(ctx, order.ID, order.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}

		envs, err = s.envelopes(ctx, order)
		if err != nil {
			return err
		}
		return s.stage(ctx, order.ID, envs)
	})
	if err != nil {
		return nil, err
	}

	if err := s.deliver(ctx, envs); err != nil {
		// The order is useless without its stock effect: take it back.
		if cerr := s.deactivate(ctx, order.ID); cerr != nil {
			logger.Error(ctx, "create: compensation failed",
				"alert", true, "order_id", order.ID, "error", cerr)
		} else {
			logger.Error(ctx, "create: replication failed, order deactivated",
				"alert", true, "order_id", order.ID, "code", order.Code, "error", err)
		}
		return nil, err
	}

	logger.Info(ctx, "purchase order created",
		"order_id", order.ID,
		"code", order.Code,
		"status", order.Status.String(),
		"messages", len(envs))
	return order, nil
}

// Update replaces an active order and its lines and publishes the new stock
// effect. The order row is locked while the status transition is checked, so
// a concurrent cancel or remove is never overwritten. In direct mode a
// delivery failure leaves the update committed, re-publishes the stock effect
// of the previous state and returns the committed order together with a
// REPLICATION_FAILURE error.
func (s *Service) Update(ctx context.Context, orderID string, order *Order) (*Order, error) {
	var (
		current *Order
		envs    []replication.Envelope
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		current, err = s.repo.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.prepareUpdate(ctx, current, order); err != nil {
			return err
		}

		if err := s.repo.Update(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if err := s.repo.ReplaceLines(ctx, order.ID, order.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}

		envs, err = s.envelopes(ctx, order)
		if err != nil {
			return err
		}
		return s.stage(ctx, order.ID, envs)
	})
	if err != nil {
		return nil, err
	}

	if err := s.deliver(ctx, envs); err != nil {
		s.compensate(ctx, current, err)
		return order, err
	}

	logger.Info(ctx, "purchase order updated",
		"order_id", order.ID,
		"code", order.Code,
		"from", current.Status.String(),
		"to", order.Status.String(),
		"messages", len(envs))
	return order, nil
}

// prepareUpdate checks order against the locked current row and copies the
// fields an update never changes.
func (s *Service) prepareUpdate(ctx context.Context, current, order *Order) error {
	if !current.Active {
		return apperror.NewNotFound("purchase order", current.ID)
	}
	if !CanTransition(current.Status, order.Status) {
		return apperror.NewInvalidTransition(current.Status.String(), order.Status.String())
	}

	order.ID = current.ID
	order.CompanyID = current.CompanyID
	order.Code = current.Code
	order.CreatedAt = current.CreatedAt
	if order.UserID == "" {
		order.UserID = appctx.GetUserID(ctx)
	}
	if order.UserID == "" {
		order.UserID = current.UserID
	}

	order.Normalize()
	if err := order.Validate(ctx); err != nil {
		return err
	}

	order.Active = true
	order.UpdatedAt = s.now()
	order.Recompute()
	order.bindLines()
	return nil
}

// Remove soft-deletes an order and withdraws its movements. Removing an
// order that is already inactive succeeds without publishing again.
func (s *Service) Remove(ctx context.Context, orderID string) error {
	env, err := movementDelete(orderID)
	if err != nil {
		return err
	}
	envs := []replication.Envelope{env}

	var current *Order
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		current, err = s.repo.GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !current.Active {
			return nil
		}
		if err := s.repo.SetActive(ctx, orderID, false); err != nil {
			return fmt.Errorf("remove order: %w", err)
		}
		return s.stage(ctx, orderID, envs)
	})
	if err != nil {
		return err
	}
	if !current.Active {
		logger.Info(ctx, "remove: order already inactive", "order_id", orderID)
		return nil
	}

	if err := s.deliver(ctx, envs); err != nil {
		logger.Error(ctx, "remove: replication failed",
			"alert", true, "order_id", orderID, "error", err)
		return err
	}

	logger.Info(ctx, "purchase order removed", "order_id", orderID, "code", current.Code)
	return nil
}

// stage writes envs to the outbox when the service runs in outbox mode.
func (s *Service) stage(ctx context.Context, orderID string, envs []replication.Envelope) error {
	if s.mode != DeliveryOutbox || len(envs) == 0 {
		return nil
	}
	if err := s.outbox.Write(ctx, orderID, envs); err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	return nil
}

// deliver sends envs when the service runs in direct mode.
func (s *Service) deliver(ctx context.Context, envs []replication.Envelope) error {
	if s.mode != DeliveryDirect || len(envs) == 0 {
		return nil
	}
	outcomes := s.sender.SendAll(ctx, envs)
	if err := replication.FirstError(outcomes); err != nil {
		if apperror.HasCode(err, apperror.CodeReplicationFailure) {
			return err
		}
		return apperror.NewReplicationFailure(string(envs[0].Process), err)
	}
	return nil
}

func (s *Service) deactivate(ctx context.Context, orderID string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SetActive(ctx, orderID, false)
	})
}

// compensate re-publishes the stock effect of prev after a failed update.
func (s *Service) compensate(ctx context.Context, prev *Order, cause error) {
	envs, err := s.compensation(prev)
	if err == nil {
		err = replication.FirstError(s.sender.SendAll(ctx, envs))
	}
	if err != nil {
		logger.Error(ctx, "update: replication failed and compensation failed",
			"alert", true, "order_id", prev.ID, "error", cause, "compensation_error", err)
		return
	}
	logger.Error(ctx, "update: replication failed, previous movements re-sent",
		"alert", true, "order_id", prev.ID, "status", prev.Status.String(), "error", cause)
}
