/*
errors.go - Error types for the payout engine

ERROR CATEGORIES:
  1. Client errors - user-correctable input (percentages, context, records)
  2. Collaborator errors - saveOverrides / approve failures, safe to retry
  3. Lookup errors - unknown schedules or instances

No error is fatal to the host. Every failure is recovered at the
per-key/per-operation boundary and returned to the caller.
*/
package payout

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPercentageMismatch is returned when contributor + receiver
	// percentages do not reconcile to 100.
	ErrPercentageMismatch = errors.New("percentages do not total 100")

	// ErrMissingContext is returned when restaurant, user or business date
	// is absent. Blocks every engine operation.
	ErrMissingContext = errors.New("missing restaurant, user or business date")

	// ErrPersistenceFailure is returned when saveOverrides fails.
	ErrPersistenceFailure = errors.New("failed to persist payout line items")

	// ErrApprovalFailure is returned when approve fails after line items
	// were persisted.
	ErrApprovalFailure = errors.New("approval call failed")

	// ErrApprovalInFlight is returned for a re-entrant approve on a key
	// that is already approving.
	ErrApprovalInFlight = errors.New("approval already in progress")

	ErrMalformedRecord  = errors.New("malformed contributor record")
	ErrInvalidConfig    = errors.New("invalid schedule config")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrInstanceNotFound = errors.New("schedule instance not found")
	ErrNotApproved      = errors.New("schedule instance not approved")
	ErrScheduleLocked   = errors.New("schedule is referenced by an approved instance")
	ErrAlreadyApproved  = errors.New("schedule instance already approved")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// PercentageMismatchError carries the totals that failed reconciliation.
type PercentageMismatchError struct {
	ContributorShare float64
	ReceiverTotal    float64
	Total            float64
}

func (e *PercentageMismatchError) Error() string {
	return fmt.Sprintf("percentages total %.2f (contributor %.2f + receivers %.2f), expected 100",
		e.Total, e.ContributorShare, e.ReceiverTotal)
}

func (e *PercentageMismatchError) Unwrap() error { return ErrPercentageMismatch }

// ConfigError points at the offending schedule field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid schedule config: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// RecordError identifies a rejected contributor row at ingestion.
type RecordError struct {
	Index  int
	Field  string
	Reason string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("contributor %d: %s: %s", e.Index, e.Field, e.Reason)
}

func (e *RecordError) Unwrap() error { return ErrMalformedRecord }

// StepError reports which approval step failed for which key.
type StepError struct {
	Key  Key
	Step string // "save_overrides" or "approve"
	Kind error  // ErrPersistenceFailure or ErrApprovalFailure
	Err  error  // collaborator error, may be nil when approve returned false
}

func (e *StepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v: %v", e.Key, e.Step, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Key, e.Step, e.Kind)
}

func (e *StepError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the caller can fix the input and resubmit.
func IsClientError(err error) bool {
	return errors.Is(err, ErrPercentageMismatch) ||
		errors.Is(err, ErrMissingContext) ||
		errors.Is(err, ErrMalformedRecord) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsRetryable returns true if re-invoking approve from Unapproved may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistenceFailure) ||
		errors.Is(err, ErrApprovalFailure) ||
		errors.Is(err, ErrApprovalInFlight)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrInstanceNotFound)
}
