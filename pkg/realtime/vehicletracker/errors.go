package vehicletracker

import "fmt"

// ValidationError is returned when a request is malformed or out of range
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

type NotFoundError struct {
	Kind       string
	Identifier string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Identifier)
}

// PreconditionError is returned when the session is not in a state that allows the operation
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s", e.Reason)
}

type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Reason)
}

func newValidationError(field string, reason string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(reason, args...)}
}

func newNotFoundError(kind string, identifier string) error {
	return &NotFoundError{Kind: kind, Identifier: identifier}
}

func newPreconditionError(reason string, args ...interface{}) error {
	return &PreconditionError{Reason: fmt.Sprintf(reason, args...)}
}

func newConflictError(reason string, args ...interface{}) error {
	return &ConflictError{Reason: fmt.Sprintf(reason, args...)}
}
