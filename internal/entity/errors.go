package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicate         = errors.New("duplicate idempotency key")
)

// InsufficientStockError carries the diagnostics of a failed stock check.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	if e.Field == "" {
		return "invalid argument: " + e.Reason
	}
	return "invalid argument " + e.Field + ": " + e.Reason
}

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

func InvalidArgument(field, reason string) error {
	return &InvalidArgumentError{Field: field, Reason: reason}
}

// ProductNotFound is the NotFound flavour raised during placement.
func ProductNotFound(id int64) error {
	return fmt.Errorf("product %d: %w", id, ErrNotFound)
}

// IsExpected reports whether err is a typed domain failure, as opposed to an
// internal fault.
func IsExpected(err error) bool {
	for _, target := range []error{
		ErrNotAuthenticated, ErrNotFound, ErrForbidden, ErrInvalidArgument,
		ErrInsufficientStock, ErrConflict, ErrInvalidTransition, ErrDuplicate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
