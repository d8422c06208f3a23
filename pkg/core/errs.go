package core

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrPairNotFound        = errors.New("pair not found")
	ErrVersionConflict     = errors.New("account was modified concurrently")
	ErrUnsupportedExchange = errors.New("unsupported exchange")
	ErrSecretNotFound      = errors.New("secret not found")
)

// ValidationError reports malformed user input. The conversation keeps its
// pending action so the user can retry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing account or pair
type NotFoundError struct {
	Resource string
	Key      string
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// ExternalServiceError wraps a failure of an exchange, wallet service,
// secret store or storage backend
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// NewExternalError wraps err as coming from service, nil stays nil
func NewExternalError(service string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalServiceError{Service: service, Err: err}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsExternal(err error) bool {
	var target *ExternalServiceError
	return errors.As(err, &target)
}
