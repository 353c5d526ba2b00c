package models

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the ledger. Match with errors.Is.
var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrDivisionByZero         = errors.New("division by zero")
	ErrUpstreamUnavailable    = errors.New("upstream unavailable")
	ErrPartialFailure         = errors.New("partial failure")
	ErrForbidden              = errors.New("forbidden")
)

// PartialFailureError reports a lifecycle operation that wrote some of its
// records before failing. The journal entry OperationID can be resumed by
// recovery.
type PartialFailureError struct {
	OperationID string
	Stage       OperationStage // last stage that completed
	Err         error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure in operation %s after %s: %v", e.OperationID, e.Stage, e.Err)
}

// Unwrap exposes both ErrPartialFailure and the underlying cause.
func (e *PartialFailureError) Unwrap() []error {
	return []error{ErrPartialFailure, e.Err}
}
