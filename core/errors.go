package core

import (
	"errors"
	"fmt"
)

var ErrUnauthorized = errors.New("unauthorized")

// A ValidationError is returned if a transition is not allowed or its input is incomplete, e.g. a missing reason on reject.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// A NotRegisteredError is returned if no policy is registered for a domain type.
// It means that moderation does not apply to the type.
type NotRegisteredError struct {
	Type string
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("type %q is not registered with the moderation system", e.Type)
}

// A NotFoundError is returned by storage if a record does not exist.
type NotFoundError struct {
	What string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.What, e.Key)
}

// Expected returns true if err is one of the user-facing errors which should be rendered as a status message.
func Expected(err error) bool {
	var validationErr *ValidationError
	var notRegisteredErr *NotRegisteredError
	var notFoundErr *NotFoundError
	return errors.As(err, &validationErr) || errors.As(err, &notRegisteredErr) || errors.As(err, &notFoundErr)
}

// IsNotFound returns true if err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// IsNotRegistered returns true if err is or wraps a NotRegisteredError.
func IsNotRegistered(err error) bool {
	var notRegisteredErr *NotRegisteredError
	return errors.As(err, &notRegisteredErr)
}
