// Package apperrors provides the typed error vocabulary used by the
// loader and orchestrator to decide what is retryable and what is
// fatal to a run.
package apperrors

import "fmt"

// ErrorType categorizes an error for retry and severity decisions.
type ErrorType string

const (
	ErrTypeValidation ErrorType = "validation"
	ErrTypeDatabase   ErrorType = "database"
	ErrTypeInternal   ErrorType = "internal"
	ErrTypeTimeout    ErrorType = "timeout"
	ErrTypeConflict   ErrorType = "conflict"
	ErrTypeNotFound   ErrorType = "not_found"
)

// AppError is a standardized application error carrying a retry hint.
type AppError struct {
	Type      ErrorType
	Code      string
	Message   string
	Cause     error
	Retryable bool
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *AppError) Unwrap() error { return e.Cause }

// IsRetryable reports whether this error should be retried.
func (e *AppError) IsRetryable() bool { return e.Retryable }

// NewDatabaseError wraps a database-layer failure. Database errors are
// retryable by default — this is what makes a chunk-level load error
// eligible for the orchestrator's retry wrapper.
func NewDatabaseError(code, message string, cause error) *AppError {
	return &AppError{Type: ErrTypeDatabase, Code: code, Message: message, Cause: cause, Retryable: true}
}

// NewInternalError wraps a non-retryable internal failure — used for
// setup and reader errors, which are fatal to the run.
func NewInternalError(code, message string, cause error) *AppError {
	return &AppError{Type: ErrTypeInternal, Code: code, Message: message, Cause: cause, Retryable: false}
}

// NewTimeoutError wraps a timeout, retryable by default.
func NewTimeoutError(code, message string, cause error) *AppError {
	return &AppError{Type: ErrTypeTimeout, Code: code, Message: message, Cause: cause, Retryable: true}
}

// NewConflictError wraps a constraint/conflict failure.
func NewConflictError(code, message string, cause error) *AppError {
	return &AppError{Type: ErrTypeConflict, Code: code, Message: message, Cause: cause, Retryable: false}
}

// Predefined error codes used by the database/loader/orchestrator layers.
const (
	ErrCodeSourceMissing      = "SOURCE_MISSING"
	ErrCodeReaderParse        = "READER_PARSE_FAILED"
	ErrCodeDatabaseConnection = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseQuery      = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseConstraint = "DATABASE_CONSTRAINT_VIOLATION"
	ErrCodeLedgerMark         = "LEDGER_MARK_FAILED"
)

// AsAppError converts err to an *AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}

// IsRetryable reports whether err should be retried. Unknown error
// types default to non-retryable: only chunk-level load errors are
// retried.
func IsRetryable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.IsRetryable()
	}
	return false
}
