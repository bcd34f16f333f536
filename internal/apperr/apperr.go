// Package apperr holds the error taxonomy shared by the services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthenticated")
	ErrForbidden    = errors.New("forbidden")
)

// ValidationError reports malformed input. Fields maps a JSON field path to a message.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Message: "Validation Error.", Fields: map[string]string{field: msg}}
}

// InsufficientInventoryError is returned when a product cannot cover the requested quantity.
type InsufficientInventoryError struct {
	ProductID   uint
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for product: %s (requested %d, available %d)",
		e.ProductName, e.Requested, e.Available)
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

func NotFound(resource string, id any) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// GatewayError is a transient payment provider failure. The outbound call is safe to retry.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string { return "payment gateway " + e.Op + ": " + e.Err.Error() }
func (e *GatewayError) Unwrap() error { return e.Err }

// PaymentNotCompletedError is a terminal provider decision other than COMPLETED.
type PaymentNotCompletedError struct {
	Status string
}

func (e *PaymentNotCompletedError) Error() string {
	return "payment not completed: provider status " + e.Status
}

// OrderCreationFailedError wraps an unexpected failure during order placement.
// The transaction has been rolled back when this is returned.
type OrderCreationFailedError struct {
	Err error
}

func (e *OrderCreationFailedError) Error() string { return "order creation failed: " + e.Err.Error() }
func (e *OrderCreationFailedError) Unwrap() error { return e.Err }

// Conflictf returns an error matching ErrConflict with a readable message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsBusiness reports whether err is an expected outcome that callers report as-is
// rather than wrapping as an internal failure.
func IsBusiness(err error) bool {
	var (
		ve *ValidationError
		ie *InsufficientInventoryError
		nf *NotFoundError
	)
	return errors.As(err, &ve) || errors.As(err, &ie) || errors.As(err, &nf) ||
		errors.Is(err, ErrConflict) || errors.Is(err, ErrForbidden)
}
