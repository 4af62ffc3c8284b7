package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// StateConflict covers transitions attempted from the wrong status,
	// e.g. approving an application that is no longer pending.
	ErrStateConflict = New("STATE_CONFLICT", http.StatusConflict, "invalid state transition")

	// CapacityExceeded is distinct from a generic conflict so that callers
	// can steer staff towards shifts that still have open slots.
	ErrCapacityExceeded = New("CAPACITY_EXCEEDED", http.StatusConflict, "shift capacity exhausted")

	// ConcurrencyConflict marks lock or serialization failures. It is the
	// only error class the engine retries automatically.
	ErrConcurrencyConflict = New("CONCURRENCY_CONFLICT", http.StatusConflict, "concurrent update detected, retry")

	// IntegrityViolation means an invariant would be broken. It must reach
	// an operator, never be silently corrected.
	ErrIntegrityViolation = New("INTEGRITY_VIOLATION", http.StatusUnprocessableEntity, "data integrity violation, manual review required")

	ErrDuplicateApplication = New("DUPLICATE_APPLICATION", http.StatusConflict, "an application for this shift already exists")
	ErrShiftClosed          = New("SHIFT_CLOSED", http.StatusConflict, "shift date has passed")
	ErrNotApproved          = New("NOT_APPROVED", http.StatusConflict, "application is not approved")
	ErrAlreadyClockedIn     = New("ALREADY_CLOCKED_IN", http.StatusConflict, "attendance already open for this application")
	ErrInvalidClockOrder    = New("INVALID_CLOCK_ORDER", http.StatusBadRequest, "clock-out must be after clock-in")
	ErrNoEligibleAttendance = New("NO_ELIGIBLE_ATTENDANCE", http.StatusUnprocessableEntity, "no approved unsettled attendance in period")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the same code as target, so that typed
// instances produced by Clone still match their prototype with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}
