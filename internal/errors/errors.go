// Package errors provides error code definitions for the sync subsystem.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a stable, log-greppable error code.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Database errors
	ErrDatabase   ErrorCode = "DATABASE_ERROR"
	ErrMigration  ErrorCode = "MIGRATION_FAILED"
	ErrConstraint ErrorCode = "CONSTRAINT_VIOLATION"

	// Configuration errors: fail fast at startup, never at call time.
	ErrConfig ErrorCode = "CONFIG_ERROR"

	// Identity and credential errors
	ErrIdentityUnresolved ErrorCode = "IDENTITY_UNRESOLVED"
	ErrIdentityMismatch   ErrorCode = "IDENTITY_MISMATCH"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"

	// Sync errors
	ErrSyncTransport ErrorCode = "SYNC_TRANSPORT"
	ErrSyncUpload    ErrorCode = "SYNC_UPLOAD_FAILED"
	ErrSyncDownload  ErrorCode = "SYNC_DOWNLOAD_FAILED"
	ErrSyncApply     ErrorCode = "SYNC_APPLY_FAILED"
	ErrSyncAuth      ErrorCode = "SYNC_AUTH_FAILED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks whether err or any error it wraps carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
