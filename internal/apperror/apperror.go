// Package apperror defines the domain error taxonomy shared by all layers.
//
// Services return these errors; the conversation engine and the HTTP
// handlers translate them into user-facing messages or status codes.
// errors.Is works across the whole chain because AppError implements Unwrap.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation error")
	ErrDuplicateName    = errors.New("duplicate name")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrStoreUnavailable = errors.New("store unavailable")
)

type AppError struct {
	Err     error  // sentinel category
	Message string // human-readable error message
	Field   string // optional: field or name causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// DuplicateName reports a registration clash. Field carries the display name
// of the pre-existing registration so the caller can show who holds the slot.
func DuplicateName(name, existing string) *AppError {
	return &AppError{
		Err:     ErrDuplicateName,
		Message: fmt.Sprintf("%q is already registered as %q", name, existing),
		Field:   existing,
	}
}

func CapacityExceeded(eventTitle string, capacity int) *AppError {
	return &AppError{
		Err:     ErrCapacityExceeded,
		Message: fmt.Sprintf("%s is full (%d seats)", eventTitle, capacity),
	}
}

// StoreUnavailable wraps an unexpected persistence failure. The original
// error stays reachable through the chain for logging; user-facing layers
// surface only the generic message.
func StoreUnavailable(err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrStoreUnavailable, err),
		Message: "storage is temporarily unavailable",
	}
}
