// Package errors defines the typed error kinds surfaced by the saltdig
// core, per spec §7. Every component returns one of these kinds rather
// than a bare sentinel so callers can switch on the failure category.
package errors

import (
	"errors"
	"fmt"
)

// Kind enumerates the error categories the core surfaces to callers.
type Kind int

const (
	// KindUnknown is the zero value and should never be returned.
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidState
	KindInvalidArgument
	KindInsufficientFunds
	KindRateLimited
	KindEscrowRPCFailure
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindRateLimited:
		return "rate_limited"
	case KindEscrowRPCFailure:
		return "escrow_rpc_failure"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is the typed wrapper returned by every core operation that fails.
// Op names the operation that failed (e.g. "bounty.Claim") for logging.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("saltdig: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("saltdig: %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// KindOf extracts the kind from err, returning KindUnknown if err does
// not carry one.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// New constructs a typed error wrapping msg formatted with args.
func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind and operation name to an existing error.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Retryable reports whether the error kind is expected to be transient.
// Only EscrowRpcFailure is retryable per spec §7.
func Retryable(err error) bool {
	return KindOf(err) == KindEscrowRPCFailure
}

// Convenience constructors mirroring the eight kinds named in spec §7.

func NotFound(op, format string, args ...interface{}) *Error {
	return New(KindNotFound, op, format, args...)
}

func Forbidden(op, format string, args ...interface{}) *Error {
	return New(KindForbidden, op, format, args...)
}

func InvalidState(op, format string, args ...interface{}) *Error {
	return New(KindInvalidState, op, format, args...)
}

func InvalidArgument(op, format string, args ...interface{}) *Error {
	return New(KindInvalidArgument, op, format, args...)
}

func InsufficientFunds(op, format string, args ...interface{}) *Error {
	return New(KindInsufficientFunds, op, format, args...)
}

func RateLimited(op, format string, args ...interface{}) *Error {
	return New(KindRateLimited, op, format, args...)
}

func EscrowRPCFailure(op string, err error) *Error {
	return Wrap(KindEscrowRPCFailure, op, err)
}

func Conflict(op, format string, args ...interface{}) *Error {
	return New(KindConflict, op, format, args...)
}
