// Package errors provides standardized error handling for the extraction pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Rejected before any resource acquisition, never retried.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// Transient render failures, retried with backoff.
	ErrCodeRenderTimeout    ErrorCode = "RENDER_TIMEOUT"
	ErrCodeRenderNavigation ErrorCode = "RENDER_NAVIGATION_FAILED"

	// Permanent render failures, surfaced immediately.
	ErrCodeListingNotFound ErrorCode = "LISTING_NOT_FOUND"

	// Terminal outcome after classification and retries.
	ErrCodeExtractionFailed ErrorCode = "EXTRACTION_FAILED"

	// The session pool could not hand out a slot in time.
	ErrCodePoolExhausted ErrorCode = "POOL_EXHAUSTED"

	// Never surfaced to callers, triggers tier degradation.
	ErrCodeCacheTierUnavailable ErrorCode = "CACHE_TIER_UNAVAILABLE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// New creates a StandardError with the given code and message.
func New(code ErrorCode, message string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Retryable: code == ErrCodeRenderTimeout || code == ErrCodeRenderNavigation,
		Timestamp: time.Now().UTC(),
	}
}

// Wrap creates a StandardError carrying the cause in Details.
func Wrap(code ErrorCode, message string, cause error) *StandardError {
	e := New(code, message)
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// AsStandard normalizes any error to a StandardError.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeExtractionFailed,
		Message:   "unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Retryable reports whether the retry policy may re-attempt after this error.
func Retryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// Code extracts the error code, defaulting to EXTRACTION_FAILED.
func Code(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeExtractionFailed
}
