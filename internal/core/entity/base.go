// Package entity holds the base types embedded by replicated reference entities.
package entity

import (
	"context"
	"time"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// Replica is reference data owned by another service and copied into this
// one through replication (companies, users, products...).
type Replica interface {
	Validatable
	GetID() string
	SetID(id string)
	GetCompanyID() string
	GetName() string
	IsActive() bool
}

// BaseReplica contains the fields every replicated row carries.
// IDs are assigned by the owning service; an empty ID means "create".
type BaseReplica struct {
	ID        string    `db:"id" json:"id,omitempty" validate:"omitempty,uuid"`
	Name      string    `db:"name" json:"name" validate:"required,max=50"`
	Active    bool      `db:"active" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

func (b *BaseReplica) GetID() string   { return b.ID }
func (b *BaseReplica) SetID(id string) { b.ID = id }
func (b *BaseReplica) GetName() string { return b.Name }
func (b *BaseReplica) IsActive() bool  { return b.Active }

// Activate marks the row active and stamps timestamps.
func (b *BaseReplica) Activate(now time.Time) {
	b.Active = true
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// CompanyScoped is embedded by replicas that belong to one company.
type CompanyScoped struct {
	CompanyID string `db:"company_id" json:"companyId" validate:"required,uuid"`
}

func (c *CompanyScoped) GetCompanyID() string { return c.CompanyID }
