package quota

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEventType is matched by every *ConfigurationError raised for
	// an event type missing from the budgets table.
	ErrUnknownEventType = errors.New("quota: unknown event type")

	// ErrInvalidBudget is returned when a budgets table fails validation.
	ErrInvalidBudget = errors.New("quota: invalid budget")

	// ErrInvalidUnits is returned for a spend of zero or fewer units.
	ErrInvalidUnits = errors.New("quota: units must be >= 1")

	// ErrWriteConflict is matched by *WriteConflictError.
	ErrWriteConflict = errors.New("quota: write conflict")

	// ErrStoreUnavailable is matched by *StoreError.
	ErrStoreUnavailable = errors.New("quota: store unavailable")
)

// ConfigurationError reports a lookup for an event type that has no budget.
// It is a programming error and must not be retried.
type ConfigurationError struct {
	EventType EventType
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("quota: no budget configured for event type %q", string(e.EventType))
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrUnknownEventType
}

// WriteConflictError is returned when every attempt of a spend lost its
// compare-and-swap race.
type WriteConflictError struct {
	Key      string
	Attempts int
}

func (e *WriteConflictError) Error() string {
	return fmt.Sprintf("quota: gave up on %q after %d conflicting writes", e.Key, e.Attempts)
}

func (e *WriteConflictError) Is(target error) bool {
	return target == ErrWriteConflict
}

// StoreError wraps the last store failure of a spend whose retry budget ran
// out on I/O errors rather than on conflicts.
type StoreError struct {
	Op       string
	Key      string
	Attempts int
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("quota: store %s %q failed after %d attempts: %v", e.Op, e.Key, e.Attempts, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}
