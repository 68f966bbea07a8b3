package availability

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Base errors, mapped to HTTP status codes at the API edge.
var (
	// ErrValidation is rendered with the http status code 400
	ErrValidation = errors.New("validation failed")

	// NotFoundError is rendered with the http status code 404
	NotFoundError = errors.New("not found")

	// PersistenceError marks store read/write failures; rendered as 500
	PersistenceError = errors.New("persistence failure")

	// ConflictError is rendered with the http status code 409
	ConflictError = errors.New("concurrent update")
)

var ErrTemplateNotFound = errors.Wrap(NotFoundError, "template not found")

// ValidationError names the offending field of a rejected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func persistenceError(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), PersistenceError)
}
