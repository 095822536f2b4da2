package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order operations.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidStatus  = errors.New("invalid order status")
	ErrNotFound       = errors.New("order not found")
)

// ValidationError describes a malformed submission. It matches
// ErrInvalidRequest with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// Is reports whether target is ErrInvalidRequest.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// ProductNotFoundError indicates a cart line references a missing product.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// OutOfStockError indicates a cart line asked for more units than in stock.
type OutOfStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product %d out of stock: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// PersistenceError wraps a storage or transaction failure. The unit of work
// it happened in has been rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// persistence wraps storage errors into a PersistenceError, passing domain
// errors through unchanged.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		pe  *PersistenceError
		pnf *ProductNotFoundError
		oos *OutOfStockError
		ve  *ValidationError
	)
	switch {
	case errors.As(err, &pe),
		errors.As(err, &pnf),
		errors.As(err, &oos),
		errors.As(err, &ve),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidStatus):
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
