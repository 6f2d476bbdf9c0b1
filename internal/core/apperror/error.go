// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors raised by the payment core use AppError so that callers can
// branch on the error kind at transaction boundaries.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeBusinessRule           = "BUSINESS_RULE_VIOLATION"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeInvalidValue           = "INVALID_VALUE"
	CodeLimitExceeded          = "LIMIT_EXCEEDED"
	CodeUnknownMethod          = "UNKNOWN_METHOD"
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeInconsistentLedger     = "INCONSISTENT_LEDGER"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict = "CONFLICT"
)

// AppError is the standard error type for the platform.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
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

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInvalidTransition reports an operation requested in a state that forbids it.
func NewInvalidTransition(entity, state, operation string) *AppError {
	return NewBusinessRule(CodeInvalidTransition,
		fmt.Sprintf("cannot %s %s in state %s", operation, entity, state)).
		WithDetail("entity", entity).
		WithDetail("state", state).
		WithDetail("operation", operation)
}

// NewInvalidValue reports a violated monetary or quantity constraint.
func NewInvalidValue(field, message string) *AppError {
	return NewBusinessRule(CodeInvalidValue, message).WithDetail("field", field)
}

// NewLimitExceeded reports an installment count above the method maximum.
func NewLimitExceeded(method string, max int) *AppError {
	return NewBusinessRule(CodeLimitExceeded,
		fmt.Sprintf("method %s allows at most %d installments", method, max)).
		WithDetail("method", method).
		WithDetail("max_installments", max)
}

// NewUnknownMethod reports a payment method name missing from the registry.
func NewUnknownMethod(name string) *AppError {
	return NewBusinessRule(CodeUnknownMethod, fmt.Sprintf("unknown payment method %q", name)).
		WithDetail("method", name)
}

// NewInsufficientStock creates a stock shortage error
func NewInsufficientStock(productID string, requested, available float64) *AppError {
	return &AppError{
		Code:       CodeInsufficientStock,
		Message:    "Insufficient stock",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		},
	}
}

// NewInconsistentLedger reports persisted state that breaks a ledger invariant.
// Not recoverable by the caller.
func NewInconsistentLedger(message string) *AppError {
	return &AppError{
		Code:       CodeInconsistentLedger,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewConcurrentModification creates an optimistic locking error
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another user. Please refresh and try again.",
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

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
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

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsValidation checks if error is CodeValidation
func IsValidation(err error) bool { return HasCode(err, CodeValidation) }

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

// IsInvalidTransition checks if error is CodeInvalidTransition
func IsInvalidTransition(err error) bool { return HasCode(err, CodeInvalidTransition) }

// IsInvalidValue checks if error is CodeInvalidValue
func IsInvalidValue(err error) bool { return HasCode(err, CodeInvalidValue) }

// IsLimitExceeded checks if error is CodeLimitExceeded
func IsLimitExceeded(err error) bool { return HasCode(err, CodeLimitExceeded) }

// IsUnknownMethod checks if error is CodeUnknownMethod
func IsUnknownMethod(err error) bool { return HasCode(err, CodeUnknownMethod) }

// IsOutOfStock checks if error is CodeInsufficientStock
func IsOutOfStock(err error) bool { return HasCode(err, CodeInsufficientStock) }

// IsInconsistentLedger checks if error is CodeInconsistentLedger
func IsInconsistentLedger(err error) bool { return HasCode(err, CodeInconsistentLedger) }

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool { return HasCode(err, CodeConcurrentModification) }
