// Package errs carries the error taxonomy shared across services and
// handlers. Sentinels cover the generic cases; the typed errors carry
// enough detail for the handler layer to build a useful response.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// InvalidResponseCountError is returned when a quiz submission selects
// too few or too many options for a question. User error, never retried.
type InvalidResponseCountError struct {
	QuestionID string
	Got        int
	Min        int
	Max        int
}

func (e *InvalidResponseCountError) Error() string {
	return fmt.Sprintf("question %s: %d option(s) selected, allowed range [%d,%d]", e.QuestionID, e.Got, e.Min, e.Max)
}

// DimensionMismatchError means a query vector does not match the catalog
// embedding dimensionality. This indicates a stale embedding model version;
// it is a configuration fault and must never be silently absorbed.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// ServiceError wraps a transient failure from an external collaborator
// (embedding service, catalog store). Retryable up to a bounded count.
type ServiceError struct {
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ComputationFailedError is surfaced when a cache recomputation failed and
// no stale value existed to fall back on.
type ComputationFailedError struct {
	Key string
	Err error
}

func (e *ComputationFailedError) Error() string {
	return fmt.Sprintf("recommendation computation failed for %s: %v", e.Key, e.Err)
}

func (e *ComputationFailedError) Unwrap() error { return e.Err }
