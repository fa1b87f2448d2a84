// Package apperr carries the stable error kinds surfaced to callers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	EmptyCart          Kind = "EMPTY_CART"
	InsufficientStock  Kind = "INSUFFICIENT_STOCK"
	OrderCommitFailed  Kind = "ORDER_COMMIT_FAILED"
	NotFinalized       Kind = "NOT_FINALIZED"
	Unauthorized       Kind = "UNAUTHORIZED"
	AlreadyRated       Kind = "ALREADY_RATED"
	InvalidRatingScore Kind = "INVALID_RATING_SCORE"
	NotFound           Kind = "NOT_FOUND"
	InvalidTransition  Kind = "INVALID_TRANSITION"
	InvalidInput       Kind = "INVALID_INPUT"
	Conflict           Kind = "CONFLICT"
	Internal           Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	// Item names the catalog item for INSUFFICIENT_STOCK.
	Item string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Stock(item string) *Error {
	return &Error{
		Kind:    InsufficientStock,
		Message: fmt.Sprintf("insufficient stock for %q, check the available quantity and try again", item),
		Item:    item,
	}
}

// KindOf returns Internal for errors that carry no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Message returns the human readable part of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

var (
	ErrEmptyCart          = &Error{Kind: EmptyCart, Message: "cart is empty"}
	ErrInsufficientStock  = &Error{Kind: InsufficientStock, Message: "insufficient stock"}
	ErrOrderCommitFailed  = &Error{Kind: OrderCommitFailed, Message: "order creation failed after stock was committed"}
	ErrNotFinalized       = &Error{Kind: NotFinalized, Message: "order is not finalized"}
	ErrUnauthorized       = &Error{Kind: Unauthorized, Message: "not authorized"}
	ErrAlreadyRated       = &Error{Kind: AlreadyRated, Message: "already rated"}
	ErrInvalidRatingScore = &Error{Kind: InvalidRatingScore, Message: "rating must be between 1 and 5"}
	ErrNotFound           = &Error{Kind: NotFound, Message: "not found"}
	ErrInvalidTransition  = &Error{Kind: InvalidTransition, Message: "invalid status transition"}
	ErrInvalidInput       = &Error{Kind: InvalidInput, Message: "invalid input"}
	ErrConflict           = &Error{Kind: Conflict, Message: "conflict"}
)
