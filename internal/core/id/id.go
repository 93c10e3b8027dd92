// Package id provides UUIDv7 generation for orders, outbox rows and queue jobs.
package id

import "github.com/google/uuid"

// ID is a type alias for UUID.
type ID = uuid.UUID

// New generates a new time-ordered UUIDv7. It falls back to a random v4
// when the clock source fails.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// NewString is New formatted as a string.
func NewString() string {
	return New().String()
}
