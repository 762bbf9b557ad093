// Package errors classifies failures for the execution engine: transient
// errors are retried, permanent errors surface to the model as tool results,
// and fatal errors abort the whole task with its remaining budget unused.
package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// TransientError represents an error that can be retried.
type TransientError struct {
	Err        error
	StatusCode int    // HTTP status code if applicable
	Message    string // human/LLM-friendly message
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as retryable.
func NewTransientError(err error, message string) *TransientError {
	return &TransientError{Err: err, Message: message}
}

// PermanentError represents an error that should not be retried.
type PermanentError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps err as non-retryable.
func NewPermanentError(err error, message string) *PermanentError {
	return &PermanentError{Err: err, Message: message}
}

// FatalKind identifies the non-retryable inference failures that abort a task
// outright instead of flowing back to the model.
type FatalKind string

const (
	FatalRateLimit     FatalKind = "rate_limit"
	FatalQuotaExceeded FatalKind = "quota_exceeded"
	FatalUnauthorized  FatalKind = "unauthorized"
)

// FatalError aborts the whole task: the remaining iteration budget is reported
// as unused, never consumed.
type FatalError struct {
	Kind       FatalKind
	Err        error
	StatusCode int
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal %s error: %v", e.Kind, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatalError wraps err as task-fatal.
func NewFatalError(kind FatalKind, err error, statusCode int) *FatalError {
	return &FatalError{Kind: kind, Err: err, StatusCode: statusCode}
}

// IsFatal reports whether err (anywhere in its chain) aborts the whole task.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// AsFatal extracts the FatalError from err's chain, if any.
func AsFatal(err error) (*FatalError, bool) {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return fatal, true
	}
	return nil, false
}

// IsTransient checks if an error is retryable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}
	if IsFatal(err) {
		return false
	}

	if isNetworkError(err) {
		return true
	}

	if statusCode := extractHTTPStatusCode(err); statusCode > 0 {
		return isTransientHTTPStatus(statusCode)
	}

	return false
}

// IsPermanent checks if an error is non-retryable (but not task-fatal).
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return true
	}
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return false
	}

	if statusCode := extractHTTPStatusCode(err); statusCode > 0 {
		return !isTransientHTTPStatus(statusCode)
	}

	lowerErr := strings.ToLower(err.Error())
	permanentPatterns := []string{
		"not found",
		"permission denied",
		"invalid",
		"unauthorized",
		"forbidden",
		"bad request",
		"tool not found",
	}
	for _, pattern := range permanentPatterns {
		if strings.Contains(lowerErr, pattern) {
			return true
		}
	}

	return false
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	lowerErr := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"i/o timeout",
		"deadline exceeded",
		"broken pipe",
		"eof",
	}
	for _, pattern := range patterns {
		if strings.Contains(lowerErr, pattern) {
			return true
		}
	}
	return false
}

// extractHTTPStatusCode pulls a status code out of common "HTTP 503"-style
// error strings. Returns 0 when none is found.
func extractHTTPStatusCode(err error) int {
	msg := err.Error()
	for _, code := range []int{500, 502, 503, 504, 408, 429, 400, 401, 403, 404} {
		if strings.Contains(msg, fmt.Sprintf("%d", code)) {
			return code
		}
	}
	return 0
}

func isTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 500, 502, 503, 504, 408:
		return true
	default:
		return false
	}
}
