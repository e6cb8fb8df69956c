package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error that occurred while talking to a data source
type ErrorType string

const (
	// ErrorTypeNetwork indicates a network-level error (connection refused, DNS, TLS, etc.)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit indicates the request was rejected due to rate limiting (HTTP 429)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeServer indicates a server error (HTTP 5xx)
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeClient indicates a client error (HTTP 4xx except 429)
	ErrorTypeClient ErrorType = "client"
	// ErrorTypeValidation indicates the response arrived but could not be understood
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeTimeout indicates the request timed out
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeUnknown indicates an error of unknown type
	ErrorTypeUnknown ErrorType = "unknown"
)

// FetchError is a structured error from a data source. Source names the
// upstream ("yahoo", "wikipedia") and is empty when the caller did not set it.
type FetchError struct {
	Source     string
	Type       ErrorType
	Retryable  bool
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Type, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s error (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	if e.Source != "" {
		msg = e.Source + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// WithSource returns e tagged with the upstream name.
func (e *FetchError) WithSource(source string) *FetchError {
	e.Source = source
	return e
}

// NewNetworkError creates a network error
func NewNetworkError(cause error) *FetchError {
	return &FetchError{
		Type:      ErrorTypeNetwork,
		Retryable: true,
		Message:   "request failed",
		Cause:     cause,
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(statusCode int) *FetchError {
	return &FetchError{
		Type:       ErrorTypeRateLimit,
		Retryable:  true,
		StatusCode: statusCode,
		Message:    "too many requests",
	}
}

// NewServerError creates a server error
func NewServerError(statusCode int) *FetchError {
	return &FetchError{
		Type:       ErrorTypeServer,
		Retryable:  true,
		StatusCode: statusCode,
		Message:    "upstream returned an error",
	}
}

// NewClientError creates a client error
func NewClientError(statusCode int, message string) *FetchError {
	return &FetchError{
		Type:       ErrorTypeClient,
		Retryable:  false,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewValidationError creates a validation error for a response that could not be used
func NewValidationError(message string) *FetchError {
	return &FetchError{
		Type:      ErrorTypeValidation,
		Retryable: false,
		Message:   message,
	}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(cause error) *FetchError {
	return &FetchError{
		Type:      ErrorTypeTimeout,
		Retryable: true,
		Message:   "request timed out",
		Cause:     cause,
	}
}

// ClassifyHTTPError maps a non-2xx status code onto the error taxonomy.
func ClassifyHTTPError(statusCode int) *FetchError {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(statusCode)
	case statusCode == http.StatusRequestTimeout:
		return &FetchError{
			Type:       ErrorTypeTimeout,
			Retryable:  true,
			StatusCode: statusCode,
			Message:    "upstream timed out",
		}
	case statusCode >= 500:
		return NewServerError(statusCode)
	case statusCode >= 400:
		return NewClientError(statusCode, http.StatusText(statusCode))
	default:
		return &FetchError{
			Type:       ErrorTypeUnknown,
			Retryable:  false,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		}
	}
}

// TypeOf reports the taxonomy category of err, or ErrorTypeUnknown when err
// carries no FetchError.
func TypeOf(err error) ErrorType {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable reports whether err is a FetchError its source marked as
// transient.
func IsRetryable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Retryable
}
