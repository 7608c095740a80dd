package service

import (
	"context"
	"errors"
	"fmt"

	"routinely/internal/database"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientPoints  = errors.New("insufficient points")
	ErrAlreadyClaimed      = errors.New("reward already claimed")
	ErrConstraintViolation = errors.New("conflicting write, retry the operation")
	ErrInternal            = errors.New("internal error")
)

var domainErrors = []error{
	ErrNotFound,
	ErrForbidden,
	ErrValidation,
	ErrInsufficientPoints,
	ErrAlreadyClaimed,
	ErrConstraintViolation,
	ErrInternal,
}

// ValidationError reports malformed input on a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// requireID checks that value is a well-formed UUID
func requireID(field, value string) error {
	if value == "" {
		return invalid(field, "is required")
	}
	if _, err := uuid.Parse(value); err != nil {
		return invalid(field, "must be a valid UUID")
	}
	return nil
}

// IsRetryable reports whether the caller may safely repeat the whole operation
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConstraintViolation) ||
		errors.Is(err, context.DeadlineExceeded)
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// storeError converts an error coming out of a database transaction into the
// service taxonomy. Errors that already carry a sentinel pass through.
func storeError(dialect database.Dialect, op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	if dialect.IsUniqueViolation(err) || dialect.IsRetryable(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrConstraintViolation, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}
