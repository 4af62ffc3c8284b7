package repository

import (
	"errors"

	"github.com/lib/pq"

	appErrors "github.com/staffops/staffing-api/pkg/errors"
)

// Postgres error codes that map onto the domain conflict taxonomy.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// translateConflict maps low-level Postgres failures onto typed domain
// errors. Serialization failures and deadlocks become retryable
// ConcurrencyConflict; a unique violation becomes the supplied conflict
// error (callers know which constraint guards their invariant).
func translateConflict(err error, onUnique *appErrors.Error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pgSerializationFailure, pgDeadlockDetected:
		return appErrors.Wrap(err, appErrors.ErrConcurrencyConflict.Code, appErrors.ErrConcurrencyConflict.Status, appErrors.ErrConcurrencyConflict.Message)
	case pgUniqueViolation:
		if onUnique != nil {
			return appErrors.Wrap(err, onUnique.Code, onUnique.Status, onUnique.Message)
		}
	}
	return err
}

// IsRetryable reports whether the error is a concurrency conflict that the
// engine may safely retry.
func IsRetryable(err error) bool {
	return errors.Is(err, appErrors.ErrConcurrencyConflict)
}
