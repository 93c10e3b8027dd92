// Package purchasing provides purchase orders: the order model, the stock
// policy and the service that keeps inventory in step with order changes.
package purchasing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"purchases/internal/core/apperror"
	"purchases/internal/core/types"
	"purchases/internal/domain"
)

// Status is the lifecycle state of a purchase order.
type Status int16

const (
	StatusCancelled Status = 0
	StatusNew       Status = 1
	StatusQuotation Status = 2
	StatusOrder     Status = 3
	StatusInvoiced  Status = 4
	StatusPaid      Status = 5
)

var statusNames = map[Status]string{
	StatusCancelled: "CANCELLED",
	StatusNew:       "NEW",
	StatusQuotation: "QUOTATION",
	StatusOrder:     "ORDER",
	StatusInvoiced:  "INVOICED",
	StatusPaid:      "PAID",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int16(s))
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// IsTerminal reports whether no further transition out of s is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// CanTransition reports whether an order may move from one status to another.
// Keeping the same status is always allowed. From a non-terminal status an
// order may move forward or be cancelled.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() || !to.Valid() {
		return false
	}
	return to == StatusCancelled || to > from
}

// Order is a purchase order with its lines.
type Order struct {
	ID        string `db:"id" json:"id"`
	CompanyID string `db:"company_id" json:"companyId" validate:"required,uuid"`
	UserID    string `db:"user_id" json:"userId" validate:"required,uuid"`
	Code      int64  `db:"code" json:"code"`

	PurchaseTypeID *string `db:"purchase_type_id" json:"purchaseTypeId,omitempty" validate:"omitempty,uuid"`
	DocumentTypeID *string `db:"document_type_id" json:"documentTypeId,omitempty" validate:"omitempty,uuid"`
	DocumentNumber string  `db:"document_number" json:"documentNumber" validate:"max=50"`

	// Provider snapshot, stored upper-cased
	ProviderName    string `db:"provider_name" json:"providerName" validate:"max=100"`
	ProviderIDDoc   string `db:"provider_id_doc" json:"providerIdDoc" validate:"max=20"`
	ProviderEmail   string `db:"provider_email" json:"providerEmail" validate:"omitempty,email,max=100"`
	ProviderPhone   string `db:"provider_phone" json:"providerPhone" validate:"max=20"`
	ProviderAddress string `db:"provider_address" json:"providerAddress" validate:"max=250"`

	Comment string `db:"comment" json:"comment" validate:"max=250"`

	// Totals (calculated from lines)
	Amount types.Money `db:"amount" json:"amount"`
	Cost   types.Money `db:"cost" json:"cost"`

	Status    Status    `db:"status" json:"status"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	Lines []Line `db:"-" json:"productList" validate:"dive"`
}

// Line is one product of a purchase order. Name and Code snapshot the
// product at the time the order was saved.
type Line struct {
	OrderID   string         `db:"order_id" json:"-"`
	ProductID string         `db:"product_id" json:"id" validate:"required,uuid"`
	Name      string         `db:"name" json:"name" validate:"max=50"`
	Code      string         `db:"code" json:"code" validate:"max=50"`
	Qty       types.Quantity `db:"qty" json:"qty"`
	Cost      types.Money    `db:"cost" json:"cost"`
	Amount    types.Money    `db:"amount" json:"amount"`
	Comment   string         `db:"comment" json:"comment" validate:"max=250"`
	Status    int16          `db:"status" json:"status"`

	// UpdateProductCost asks for the derived unit cost to be pushed to the
	// product master. Not persisted.
	UpdateProductCost bool `db:"-" json:"updateProductCost"`
}

// Normalize upper-cases provider fields and trims free text.
func (o *Order) Normalize() {
	o.ProviderName = strings.ToUpper(strings.TrimSpace(o.ProviderName))
	o.ProviderIDDoc = strings.ToUpper(strings.TrimSpace(o.ProviderIDDoc))
	o.ProviderEmail = strings.ToUpper(strings.TrimSpace(o.ProviderEmail))
	o.ProviderPhone = strings.ToUpper(strings.TrimSpace(o.ProviderPhone))
	o.ProviderAddress = strings.ToUpper(strings.TrimSpace(o.ProviderAddress))
	o.DocumentNumber = strings.TrimSpace(o.DocumentNumber)
	o.Comment = strings.TrimSpace(o.Comment)
}

// Recompute derives the order totals from its lines.
func (o *Order) Recompute() {
	amounts := make([]types.Money, 0, len(o.Lines))
	costs := make([]types.Money, 0, len(o.Lines))
	for _, line := range o.Lines {
		amounts = append(amounts, line.Amount)
		costs = append(costs, line.Cost)
	}
	o.Amount = types.Sum(amounts...)
	o.Cost = types.Sum(costs...)
}

// Validate checks order invariants.
func (o *Order) Validate(ctx context.Context) error {
	if err := domain.ValidateStruct(o); err != nil {
		return err
	}
	if !o.Status.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown status %d", int16(o.Status))).
			WithDetail("field", "status")
	}
	for i, line := range o.Lines {
		if line.Qty.IsNegative() {
			return apperror.NewValidation("quantity must not be negative").
				WithDetail("line", i).WithDetail("productId", line.ProductID)
		}
		if line.Amount.IsNegative() || line.Cost.IsNegative() {
			return apperror.NewValidation("amount and cost must not be negative").
				WithDetail("line", i).WithDetail("productId", line.ProductID)
		}
	}
	return nil
}

// bindLines points every line at the order.
func (o *Order) bindLines() {
	for i := range o.Lines {
		o.Lines[i].OrderID = o.ID
	}
}
