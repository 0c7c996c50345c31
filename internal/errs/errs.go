// Package errs defines the tagged error kinds that cross every capability
// boundary in the strategy execution core: configuration, policy, on-chain
// revert, transport, and runtime error kinds each propagate as a distinct,
// inspectable value instead of an opaque error string.
package errs

import (
	"errors"
	"fmt"
)

// Kind partitions every error the core can return into one of five classes.
// User code that catches an error from the capability surface switches on
// Kind, not on string content.
type Kind string

const (
	// Configuration errors are fatal to the operation and never retried.
	KindVenueNotConfigured    Kind = "VenueNotConfigured"
	KindDelegateNotConfigured Kind = "DelegateNotConfigured"
	KindBadAddress            Kind = "BadAddress"
	KindBadAmount             Kind = "BadAmount"

	// KindNotAuthorized covers every custody call made by a caller who is
	// not the role the call requires (operator-only, owner-only, ...).
	KindNotAuthorized Kind = "NotAuthorized"

	// Policy errors are rejected before submission.
	KindRiskLimitExceeded   Kind = "RiskLimitExceeded"
	KindParameterOutOfRange Kind = "ParameterOutOfRange"

	// On-chain revert errors are terminal for the current attempt.
	KindSlippageExceeded    Kind = "SlippageExceeded"
	KindDeadlineExpired     Kind = "DeadlineExpired"
	KindPairNotAllowed      Kind = "PairNotAllowed"
	KindPaused              Kind = "Paused"
	KindInsufficientBalance Kind = "InsufficientBalance"
	KindReentrancy          Kind = "Reentrancy"
	KindUnknownRevert       Kind = "Unknown"

	// Transport errors are retryable by the caller.
	KindTimeout           Kind = "Timeout"
	KindNetworkUnavailable Kind = "NetworkUnavailable"

	// Runtime errors are per-tick and non-fatal to the run unless uncaught.
	KindUserCodeError Kind = "UserCodeError"
)

// Error is the concrete type every component in the core returns for
// anything that isn't a bare Go error from a lower layer (io, json, etc).
type Error struct {
	Kind    Kind
	Message string
	Raw     string // raw chain revert reason, when Kind is an on-chain revert
	Err     error  // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("%s: %s (revert: %s)", e.Kind, e.Message, e.Raw)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around a lower-level cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Revert builds an on-chain revert Error carrying the raw revert reason.
func Revert(kind Kind, message, raw string) *Error {
	return &Error{Kind: kind, Message: message, Raw: raw}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether err belongs to a class the caller may
// automatically retry without strategy-author intervention. Per the core's
// propagation policy, transport errors are retryable; everything else is
// surfaced as-is and retrying is left to the strategy's own schedule.
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTimeout || e.Kind == KindNetworkUnavailable
	}
	return false
}
