package purchasing

import (
	"context"
	"fmt"

	"purchases/internal/core/featureflag"
	"purchases/internal/core/types"
	"purchases/internal/replication"
)

// Movements returns one inbound purchase movement per line of o.
func Movements(o *Order) []replication.Movement {
	movements := make([]replication.Movement, 0, len(o.Lines))
	for _, line := range o.Lines {
		movements = append(movements, replication.Movement{
			RelatedID:   o.ID,
			RelatedCode: o.Code,
			Type:        replication.MovementIn,
			Reason:      replication.ReasonPurchase,
			Qty:         line.Qty,
			ProductID:   line.ProductID,
			UserID:      o.UserID,
		})
	}
	return movements
}

// ProductCosts returns the derived unit cost of every line flagged with
// UpdateProductCost. Lines with zero quantity have no unit cost and are skipped.
func ProductCosts(o *Order) []replication.ProductCost {
	var costs []replication.ProductCost
	for _, line := range o.Lines {
		if !line.UpdateProductCost {
			continue
		}
		cost, ok := types.UnitCost(line.Amount, line.Qty)
		if !ok {
			continue
		}
		costs = append(costs, replication.ProductCost{
			ProductID: line.ProductID,
			Cost:      cost,
			RelatedID: o.ID,
			UserID:    o.UserID,
		})
	}
	return costs
}

func movementUpdate(o *Order) (replication.Envelope, error) {
	return replication.NewEnvelope(replication.SourcePurchases, replication.ProcessMovementUpdate, Movements(o))
}

func movementDelete(orderID string) (replication.Envelope, error) {
	return replication.NewEnvelope(replication.SourcePurchases, replication.ProcessMovementDelete,
		[]replication.Ref{{ID: orderID}})
}

// stockEnvelope is the movement message matching the stock effect of o in its
// current status, or nil when the status does not touch inventory.
func (s *Service) stockEnvelope(o *Order) (*replication.Envelope, error) {
	if o.Status == StatusCancelled {
		env, err := movementDelete(o.ID)
		return &env, err
	}

	affects, err := s.policy.Affects(o.Status)
	if err != nil {
		return nil, err
	}
	if !affects {
		return nil, nil
	}
	env, err := movementUpdate(o)
	return &env, err
}

// envelopes builds every replication message an order save produces.
func (s *Service) envelopes(ctx context.Context, o *Order) ([]replication.Envelope, error) {
	var envs []replication.Envelope

	stock, err := s.stockEnvelope(o)
	if err != nil {
		return nil, fmt.Errorf("movement envelope: %w", err)
	}
	if stock != nil {
		envs = append(envs, *stock)
	}

	if s.flags != nil && s.flags.IsEnabled(ctx, featureflag.ProductCostUpdate) {
		if costs := ProductCosts(o); len(costs) > 0 {
			env, err := replication.NewEnvelope(replication.SourcePurchases, replication.ProcessProductCostUpdate, costs)
			if err != nil {
				return nil, fmt.Errorf("product cost envelope: %w", err)
			}
			envs = append(envs, env)
		}
	}

	return envs, nil
}

// compensation returns the messages that restore the stock effect of prev,
// the order state before a failed update.
func (s *Service) compensation(prev *Order) ([]replication.Envelope, error) {
	stock, err := s.stockEnvelope(prev)
	if err != nil {
		return nil, err
	}
	if stock != nil {
		return []replication.Envelope{*stock}, nil
	}
	// prev booked nothing: whatever the failed update may have booked goes.
	env, err := movementDelete(prev.ID)
	if err != nil {
		return nil, err
	}
	return []replication.Envelope{env}, nil
}
