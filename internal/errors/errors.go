// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrUnauthorized        = errors.New("access token missing or expired")
	ErrAuthExchangeFailed  = errors.New("authorization code exchange failed")
	ErrNoActiveExpiry      = errors.New("no active expiry selected")
	ErrInstrumentNotFound  = errors.New("instrument not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrMarketClosed        = errors.New("market is closed")
	ErrPositionNotFound    = errors.New("position not found")
	ErrQuoteUnavailable    = errors.New("live quote unavailable")
	ErrUpstreamUnavailable = errors.New("market data service unavailable")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// UpstreamError represents an error returned by the Upstox API.
type UpstreamError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream error [%d] %s: %s: %v", e.StatusCode, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream error [%d] %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// Unwrap maps the HTTP status onto the domain taxonomy so callers can use
// errors.Is against the sentinels.
func (e *UpstreamError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.StatusCode == 401 {
		return ErrUnauthorized
	}
	return ErrUpstreamUnavailable
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(statusCode int, endpoint, message string, err error) *UpstreamError {
	return &UpstreamError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
		Err:        err,
	}
}

// ValidationError represents a malformed command or argument.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}
