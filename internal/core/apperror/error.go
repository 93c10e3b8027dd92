// Package apperror provides structured error handling for the purchases service.
// Domain and infrastructure code return AppError for every failure the caller
// is expected to act on; everything else is wrapped with fmt.Errorf.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeBusinessRule       = "BUSINESS_RULE_VIOLATION"
	CodeInvalidTransition  = "INVALID_STATUS_TRANSITION"
	CodeReplicationFailure = "REPLICATION_FAILURE"
	CodeUnroutableProcess  = "UNROUTABLE_PROCESS"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeAlreadyExists          = "ALREADY_EXISTS"
	CodeInUse                  = "IN_USE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
)

// AppError is the standard error type of the service.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (entity, id, field...)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewAlreadyExists is returned when an application-level uniqueness check fails
// before insert (e.g. a duplicate name inside a company).
func NewAlreadyExists(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeAlreadyExists,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// NewInUse is returned when the datastore rejects a delete because other rows
// still reference the entity.
func NewInUse(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeInUse,
		Message:    fmt.Sprintf("%s is being used", entity),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInvalidTransition reports a status change the order state machine forbids.
func NewInvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    fmt.Sprintf("status change %s -> %s is not allowed", from, to),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"from": from, "to": to},
	}
}

// NewReplicationFailure wraps an enqueue or downstream failure.
func NewReplicationFailure(process string, err error) *AppError {
	return &AppError{
		Code:       CodeReplicationFailure,
		Message:    "replication failed",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"process": process},
		Err:        err,
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another process. Reload and try again.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsAlreadyExists checks if error is CodeAlreadyExists
func IsAlreadyExists(err error) bool {
	return HasCode(err, CodeAlreadyExists)
}

// IsInUse checks if error is CodeInUse
func IsInUse(err error) bool {
	return HasCode(err, CodeInUse)
}
