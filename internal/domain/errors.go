package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports missing or malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// NewNotFoundError builds a NotFoundError.
func NewNotFoundError(entity string, id int64) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// InsufficientStockError is returned when a reservation or sale asks for
// more units than an item has available at commit time.
type InsufficientStockError struct {
	ItemID    int64
	ItemName  string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	if e.ItemName != "" {
		return fmt.Sprintf("insufficient stock for item %d (%s): available %d, requested %d",
			e.ItemID, e.ItemName, e.Available, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for item %d: available %d, requested %d",
		e.ItemID, e.Available, e.Requested)
}

var (
	// ErrReturnWindowExpired is returned when a sale is returned after its window closed.
	ErrReturnWindowExpired = errors.New("sale return window has expired")

	// ErrCounterInvariant means an item's counters no longer add up to its total.
	ErrCounterInvariant = errors.New("item counters are inconsistent")

	// ErrRentalClosed is returned when a return targets a rental that is no longer active.
	ErrRentalClosed = &ValidationError{Field: "rental", Message: "rental is already closed"}

	// ErrSaleReturned is returned when a sale has already been returned.
	ErrSaleReturned = &ValidationError{Field: "sale", Message: "sale has already been returned"}
)

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
