package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to decide how to react
// (surface to the user, retry, re-fetch).
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindPersistence
	KindInvariant
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindPersistence:
		return "persistence"
	case KindInvariant:
		return "invariant"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a typed domain error. Sentinels below are compared with errors.Is;
// details are attached by wrapping with fmt.Errorf("%w: ...").
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation errors: bad input, no state change.
var (
	ErrTableNotSelected       = newError(KindValidation, "table_not_selected", "no table selected")
	ErrInvalidDiscount        = newError(KindValidation, "invalid_discount", "invalid discount")
	ErrInsufficientCash       = newError(KindValidation, "insufficient_cash", "cash given is less than the total")
	ErrUnconfirmedCardPayment = newError(KindValidation, "unconfirmed_card_payment", "card payment is not confirmed")
	ErrSplitMismatch          = newError(KindValidation, "split_mismatch", "cash and card amounts do not add up to the total")
	ErrInvalidPaymentMethod   = newError(KindValidation, "invalid_payment_method", "unknown payment method")
	ErrInvalidUnpaidReason    = newError(KindValidation, "invalid_unpaid_reason", "unpaid closure reason is missing or unknown")
	ErrInvalidTransfer        = newError(KindValidation, "invalid_transfer", "invalid transfer request")
)

// Invariant violations: rejected before any write.
var (
	ErrNothingToSend = newError(KindInvariant, "nothing_to_send", "order has no pending items to send to the kitchen")
	ErrEmptySource   = newError(KindInvariant, "empty_source", "transfer would leave the source order empty")
	ErrNoActiveOrder = newError(KindInvariant, "no_active_order", "table has no active order")
)

// Conflicts: recoverable by re-fetching and retrying.
var (
	ErrConcurrencyConflict  = newError(KindConflict, "concurrency_conflict", "order was modified concurrently")
	ErrActiveOrderExists    = newError(KindConflict, "active_order_exists", "table already has an active order")
	ErrSettlementInProgress = newError(KindConflict, "settlement_in_progress", "settlement already in progress for this order")
)

var (
	ErrPersistence = newError(KindPersistence, "persistence", "persistence failure")
	ErrNotFound    = newError(KindNotFound, "not_found", "not found")
)

// Persistence wraps a store failure so that it matches both ErrPersistence and
// the underlying driver error.
func Persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// ValidationError reports a single invalid request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// KindOf returns the kind of the first typed error found in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the machine-readable code of err, or "internal".
func CodeOf(err error) string {
	var ve ValidationError
	if errors.As(err, &ve) {
		return "validation_failed"
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

// Retryable reports whether a fresh read-modify-write may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrActiveOrderExists)
}
