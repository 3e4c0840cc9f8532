/*
errors.go - Centralized error types for the scheduling and billing core

PURPOSE:
  All error kinds the core can surface, in one place. The core never logs
  and never swallows: every failure is returned to the caller, which owns
  messaging and retry policy.

ERROR CATEGORIES:
  1. Validation errors - rejected before any write is attempted
  2. Not-found errors  - the referenced student/event no longer exists
  3. Write failures    - the external store rejected or timed out a write
  4. Inconsistent-state warnings - soft signal, not a hard error

USAGE:
  if errors.Is(err, schedule.ErrValidation) { ... }

  var nf *schedule.NotFoundError
  if errors.As(err, &nf) { ... }
*/
package schedule

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input: non-positive amounts,
	// missing required date/time, malformed anchor. Nothing was written.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when operating on a student or event id that
	// no longer exists in the store. No partial mutation is performed.
	ErrNotFound = errors.New("not found")

	// ErrWriteFailed is returned when the external store rejects or times
	// out a mutation. The core performs no automatic retry; retry policy
	// belongs to the store adapter.
	ErrWriteFailed = errors.New("store write failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field failed and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Kind string // "student", "event", "charge"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// WriteFailure wraps a store-level failure with the operation it broke.
type WriteFailure struct {
	Op  string // e.g. "event.save", "ledger.update"
	Err error
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("write failed: %s: %v", e.Op, e.Err)
}

func (e *WriteFailure) Unwrap() error { return ErrWriteFailed }

// =============================================================================
// INCONSISTENT STATE WARNING - Signal, not error
// =============================================================================

// InconsistentStateWarning is emitted when the core detects a
// ledger/schedule mismatch it could not fully reconcile, e.g. the ledger
// write committed but the dependent event write failed. It is not a hard
// error: the state self-heals on the next reconciliation pass, but the
// caller should prompt a manual re-sync.
type InconsistentStateWarning struct {
	StudentID string
	Detail    string
}

func (w *InconsistentStateWarning) String() string {
	return fmt.Sprintf("inconsistent state for student %s: %s", w.StudentID, w.Detail)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
