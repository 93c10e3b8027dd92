package replication

import (
	"purchases/internal/core/types"
)

// MovementType is the stock direction of a movement.
type MovementType int16

const (
	MovementIn  MovementType = 1
	MovementOut MovementType = 2
)

// MovementReason explains why stock moved.
type MovementReason int16

const (
	ReasonSale       MovementReason = 1
	ReasonPurchase   MovementReason = 2
	ReasonAdjustment MovementReason = 3
)

// Movement is one inventory movement sent with movementUpdate.
// RelatedID and RelatedCode point at the purchase order that caused it.
type Movement struct {
	ID          string         `json:"id,omitempty"`
	RelatedID   string         `json:"relatedId,omitempty"`
	RelatedCode int64          `json:"relatedCode,omitempty"`
	Type        MovementType   `json:"type"`
	Reason      MovementReason `json:"reason"`
	Qty         types.Quantity `json:"qty"`
	ProductID   string         `json:"productId"`
	UserID      string         `json:"userId"`
}

// Ref is the {"id": ...} payload of delete processes.
type Ref struct {
	ID string `json:"id"`
}

// ProductCost is one entry of a productCostUpdate payload.
type ProductCost struct {
	ProductID string      `json:"productId"`
	Cost      types.Money `json:"cost"`
	RelatedID string      `json:"relatedId"`
	UserID    string      `json:"userId"`
}
