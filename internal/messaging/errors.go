package messaging

import "fmt"

// ValidationError indicates a create request was missing a required field.
// It is surfaced to the caller as a rejected request and never retried.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// NotFoundError indicates the requesting user does not exist.
type NotFoundError struct {
	UserId int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user %d not found", e.UserId)
}
