// Package apperr defines the error taxonomy shared by the agent, the commerce
// services and the API layer.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies an error for the API boundary.
type Kind string

const (
	KindValidation Kind = "VALIDATION_ERROR"
	KindNotFound   Kind = "ITEM_NOT_FOUND"
	KindDuplicate  Kind = "DUPLICATE_ITEM"
	KindCartLimit  Kind = "CART_LIMIT"
	KindEmptyCart  Kind = "EMPTY_CART"
	KindUnsafe     Kind = "UNSAFE_INPUT"
	KindFlagged    Kind = "CONTENT_FLAGGED"
	KindConflict   Kind = "CONFLICT"
	KindInternal   Kind = "INTERNAL_ERROR"
)

// Candidate is a possible duplicate surfaced by a DuplicateItem error.
type Candidate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Error is a classified error. Message is safe to show to end users.
type Error struct {
	Kind       Kind
	Message    string
	Categories []string
	Candidates []Candidate
	Field      string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Validation returns a validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// FieldValidation returns a validation error bound to a single argument field.
func FieldValidation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns an item-not-found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Duplicate returns a duplicate-item error listing the candidates.
func Duplicate(candidates []Candidate) *Error {
	return &Error{
		Kind:       KindDuplicate,
		Message:    fmt.Sprintf("a similar item already exists (%d candidate(s))", len(candidates)),
		Candidates: candidates,
	}
}

// CartLimit returns a cart-limit error.
func CartLimit(format string, args ...any) *Error {
	return &Error{Kind: KindCartLimit, Message: fmt.Sprintf(format, args...)}
}

// EmptyCart returns an empty-cart error.
func EmptyCart() *Error {
	return &Error{Kind: KindEmptyCart, Message: "cart is empty"}
}

// Unsafe returns a safety-gate rejection naming the categories generically.
func Unsafe(categories []string) *Error {
	return &Error{
		Kind:       KindUnsafe,
		Message:    "message rejected by input safety checks",
		Categories: categories,
	}
}

// Flagged returns a moderation rejection.
func Flagged(categories []string) *Error {
	return &Error{
		Kind:       KindFlagged,
		Message:    "message rejected by content moderation",
		Categories: categories,
	}
}

// Conflict returns a concurrent-modification error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or KindInternal if err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the classified error wrapped by err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps err to the status code returned at the API boundary.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindCartLimit, KindEmptyCart, KindUnsafe, KindFlagged:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicate, KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
