package checkout

import (
	"errors"
	"fmt"
)

var ErrUnauthenticated = errors.New("authentication required")

// ValidationError rejects malformed input before any state is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

type StockInsufficientError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockInsufficientError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ConcurrencyConflictError means validation passed but another order took
// the stock before the decrement ran.
type ConcurrencyConflictError struct {
	ProductID string
	Requested int
	Available int
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("stock for product %s changed during checkout: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
