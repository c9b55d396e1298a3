package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrConsistency     = errors.New("ledger consistency violation")
	ErrUnverifiedEvent = errors.New("processor event signature not verified")
	ErrDatabase        = errors.New("database error")
	ErrProcessor       = errors.New("payment processor error")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInvalidState    = "INVALID_STATE"
	ErrCodeConsistency     = "CONSISTENCY_ERROR"
	ErrCodeUnverifiedEvent = "UNVERIFIED_EVENT"
	ErrCodeDatabaseError   = "DATABASE_ERROR"
	ErrCodeProcessorError  = "PROCESSOR_ERROR"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// CodeOf returns the code of the outermost BusinessError in err's chain,
// or ErrCodeInternal when there is none.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ErrCodeInternal
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Wrap common errors with business context
func WrapValidation(format string, args ...any) *BusinessError {
	return NewBusinessError(
		ErrCodeValidation,
		fmt.Sprintf(format, args...),
		ErrValidation,
	)
}

func WrapNotFound(entity, id string) *BusinessError {
	return NewBusinessError(
		ErrCodeNotFound,
		fmt.Sprintf("%s with ID %s not found", entity, id),
		ErrNotFound,
	)
}

func WrapInvalidState(format string, args ...any) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidState,
		fmt.Sprintf(format, args...),
		ErrInvalidState,
	)
}

func WrapConsistency(format string, args ...any) *BusinessError {
	return NewBusinessError(
		ErrCodeConsistency,
		fmt.Sprintf(format, args...),
		ErrConsistency,
	)
}

func WrapUnverifiedEvent(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeUnverifiedEvent,
		reason,
		ErrUnverifiedEvent,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		fmt.Errorf("%w: %v", ErrDatabase, err),
	)
}

func WrapProcessorError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeProcessorError,
		"payment processor call failed",
		fmt.Errorf("%w: %v", ErrProcessor, err),
	)
}

// Classify leaves business errors untouched and wraps anything else as a
// database error. Repository results pass through it before leaving a service.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var be *BusinessError
	if errors.As(err, &be) {
		return err
	}
	return WrapDatabaseError(err)
}
