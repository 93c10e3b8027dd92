package context

import (
	"context"
)

// Actor identifies the company (tenant) and user on whose behalf a business
// operation runs. It is filled by the caller of the purchasing service.
type Actor struct {
	CompanyID string
	UserID    string
}

type actorKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActor returns Actor from context.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetCompanyID returns company ID from context or empty string.
func GetCompanyID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.CompanyID
	}
	return ""
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.UserID
	}
	return ""
}
