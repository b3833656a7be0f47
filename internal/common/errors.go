package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionNotFound: unknown or expired session id. Re-ingest to recover.
	ErrSessionNotFound = errors.New("session not found or expired")
	// ErrPageOutOfRange: page number outside [1, pageCount].
	ErrPageOutOfRange = errors.New("page number out of range")
	// ErrIngestionFailed: the renderer rejected the document. Nothing was stored.
	ErrIngestionFailed = errors.New("document ingestion failed")
	// ErrModelCall: the language model call failed (auth, quota or transport).
	ErrModelCall = errors.New("model call failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// InvalidInputError wraps ErrInvalidInput with a caller-facing message.
func InvalidInputError(message string) error {
	return NewAppError("INVALID_INPUT", message, ErrInvalidInput)
}

func InvalidInputErrorf(format string, args ...interface{}) error {
	return InvalidInputError(fmt.Sprintf(format, args...))
}
