package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/shop-service/internal/lock"
)

// Error kinds. Every error returned by the services matches exactly one of these via errors.Is,
// or is an unexpected infrastructure failure.
var (
	ErrNotFound        = errors.New("not found")
	ErrBadRequest      = errors.New("bad request")
	ErrForbidden       = errors.New("forbidden")
	ErrLockUnavailable = errors.New("resource is busy, retry later")
)

var (
	ErrUserNotFound    = kindError(ErrNotFound, "user not found")
	ErrProductNotFound = kindError(ErrNotFound, "product not found")
	ErrItemNotFound    = kindError(ErrNotFound, "item not found in cart")
	ErrAddressNotFound = kindError(ErrNotFound, "address not found")
	ErrOrderNotFound   = kindError(ErrNotFound, "order not found")

	ErrInvalidQuantity     = kindError(ErrBadRequest, "quantity must be greater than zero")
	ErrProductUnavailable  = kindError(ErrBadRequest, "product is not available")
	ErrInsufficientStock   = kindError(ErrBadRequest, "insufficient stock")
	ErrEmptyCart           = kindError(ErrBadRequest, "cart is empty")
	ErrNoItemsSelected     = kindError(ErrBadRequest, "no valid items selected")
	ErrInvalidStatus       = kindError(ErrBadRequest, "unknown order status")
	ErrInvalidTransition   = kindError(ErrBadRequest, "order status transition not allowed")
	ErrOrderNotCancellable = kindError(ErrBadRequest, "order can no longer be cancelled")
	ErrPaymentSettled      = kindError(ErrBadRequest, "payment is already settled")
	ErrPaymentFailed       = kindError(ErrBadRequest, "payment could not be initiated")

	ErrAddressNotOwned = kindError(ErrForbidden, "address does not belong to user")
	ErrOrderNotOwned   = kindError(ErrForbidden, "order does not belong to user")
)

type kindErr struct {
	kind error
	msg  string
}

func (e *kindErr) Error() string { return e.msg }
func (e *kindErr) Unwrap() error { return e.kind }

func kindError(kind error, msg string) error {
	return &kindErr{kind: kind, msg: msg}
}

// StockViolation describes one product that blocks a checkout.
type StockViolation struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
	Unavailable bool
}

func (v StockViolation) String() string {
	if v.Unavailable {
		return fmt.Sprintf("%s is not available", v.ProductName)
	}
	return fmt.Sprintf("%s has only %d in stock", v.ProductName, v.Available)
}

// StockError aggregates every violation found while validating a checkout.
type StockError struct {
	Violations []StockViolation
}

func (e *StockError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return "cannot complete order: " + strings.Join(msgs, ", ")
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// lockError tags lock acquisition failures as ErrLockUnavailable and leaves other errors alone.
func lockError(err error) error {
	if errors.Is(err, lock.ErrNotAcquired) || errors.Is(err, lock.ErrInterrupted) {
		return fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}
	return err
}
