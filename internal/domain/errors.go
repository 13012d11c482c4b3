package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrPersistence         = errors.New("persistence failure")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field string, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type StockShortage struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStockError lists every product of a cart whose requested
// quantity exceeds the stock available at validation time.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		label := s.Name
		if label == "" {
			label = s.ProductID
		}
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", label, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// PersistenceError wraps a failed write. Nothing from the failed unit is visible.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func (e *PersistenceError) Retryable() bool {
	return true
}

type ConcurrencyConflictError struct {
	ProductIDs []string
	Attempts   int
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("stock changed concurrently for %s after %d attempts", strings.Join(e.ProductIDs, ", "), e.Attempts)
}

func (e *ConcurrencyConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

func (e *ConcurrencyConflictError) Retryable() bool {
	return true
}

// IsRetryable reports whether the caller may resubmit the same request.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}
