package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or missing input, rejected before any side effect.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientFunds marks a refused debit. No state changed.
	ErrInsufficientFunds = errors.New("insufficient balance")
	// ErrNotFound marks a missing wallet, payment, credit or user.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a request that clashes with current state, e.g. paying a paid credit.
	ErrConflict = errors.New("conflict")
	// ErrDependencyUnavailable marks a downstream call that failed or timed out.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrCompensationFailed marks a failed undo of a committed step. Funds need manual reconciliation.
	ErrCompensationFailed = errors.New("compensation failed")
)

// CompensationError is raised when a refund or reversal meant to undo a prior
// step itself fails.
type CompensationError struct {
	SagaID string
	Step   string
	Cause  error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation failed for saga %s step %s: %v", e.SagaID, e.Step, e.Cause)
}

func (e *CompensationError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrCompensationFailed) match regardless of the cause.
func (e *CompensationError) Is(target error) bool {
	return target == ErrCompensationFailed
}

// Error codes carried in the wire envelope.
const (
	CodeValidation            = "validation"
	CodeInsufficientFunds     = "insufficient_funds"
	CodeNotFound              = "not_found"
	CodeConflict              = "conflict"
	CodeDependencyUnavailable = "dependency_unavailable"
	CodeCompensationFailed    = "compensation_failed"
	CodeInternal              = "internal"
)

// Code returns the wire code for err. Compensation failures win over their causes.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCompensationFailed):
		return CodeCompensationFailed
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrInsufficientFunds):
		return CodeInsufficientFunds
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrDependencyUnavailable):
		return CodeDependencyUnavailable
	}
	return CodeInternal
}

// ErrorForCode maps a wire code back to its sentinel, nil when unknown.
func ErrorForCode(code string) error {
	switch code {
	case CodeValidation:
		return ErrValidation
	case CodeInsufficientFunds:
		return ErrInsufficientFunds
	case CodeNotFound:
		return ErrNotFound
	case CodeConflict:
		return ErrConflict
	case CodeDependencyUnavailable:
		return ErrDependencyUnavailable
	case CodeCompensationFailed:
		return ErrCompensationFailed
	}
	return nil
}
