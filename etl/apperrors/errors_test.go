package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error_WithCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewDatabaseError(ErrCodeDatabaseQuery, "query failed", cause)

	assert.Contains(t, err.Error(), "query failed")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestAppError_Error_WithoutCause(t *testing.T) {
	err := NewInternalError(ErrCodeSourceMissing, "source file missing", nil)

	assert.Equal(t, "SOURCE_MISSING: source file missing", err.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewDatabaseError(ErrCodeDatabaseConnection, "connect failed", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestNewDatabaseError_IsRetryable(t *testing.T) {
	err := NewDatabaseError(ErrCodeDatabaseQuery, "deadlock", nil)
	assert.True(t, err.IsRetryable())
}

func TestNewInternalError_IsNotRetryable(t *testing.T) {
	err := NewInternalError(ErrCodeSourceMissing, "missing", nil)
	assert.False(t, err.IsRetryable())
}

func TestNewTimeoutError_IsRetryable(t *testing.T) {
	err := NewTimeoutError("TIMEOUT", "deadline exceeded", nil)
	assert.True(t, err.IsRetryable())
}

func TestNewConflictError_IsNotRetryable(t *testing.T) {
	err := NewConflictError("CONFLICT", "unique violation", nil)
	assert.False(t, err.IsRetryable())
}

func TestAsAppError(t *testing.T) {
	err := NewDatabaseError(ErrCodeDatabaseQuery, "failed", nil)

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, ErrTypeDatabase, appErr.Type)

	_, ok = AsAppError(errors.New("plain error"))
	assert.False(t, ok)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewDatabaseError("X", "x", nil)))
	assert.False(t, IsRetryable(NewInternalError("X", "x", nil)))
	assert.False(t, IsRetryable(errors.New("unknown")))
}
