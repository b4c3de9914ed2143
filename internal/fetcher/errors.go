package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error categories surfaced to pipeline callers. Match them with errors.Is.
var (
	// ErrDataSource marks a failure to fetch or parse the reference listing
	ErrDataSource = errors.New("data source error")
	// ErrNetwork marks a transport failure talking to the enrichment provider
	ErrNetwork = errors.New("network error")
	// ErrSchema marks a value that could not be coerced to its declared column type
	ErrSchema = errors.New("schema error")
)

// ErrorType represents the category of error that occurred during a fetch operation
type ErrorType string

const (
	// ErrorTypeNetwork indicates a network-level error (connection refused, DNS, etc.)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit indicates the request was rejected due to rate limiting (HTTP 429)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeServer indicates a server error (HTTP 5xx)
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeClient indicates a client error (HTTP 4xx except 429)
	ErrorTypeClient ErrorType = "client"
	// ErrorTypeTimeout indicates the request timed out
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeDataSource indicates the reference listing was missing or malformed
	ErrorTypeDataSource ErrorType = "data_source"
	// ErrorTypeSchema indicates a value failed type coercion
	ErrorTypeSchema ErrorType = "schema"
	// ErrorTypeUnknown indicates an error of unknown type
	ErrorTypeUnknown ErrorType = "unknown"
)

// FetchError represents a structured error from a fetch operation
type FetchError struct {
	Type       ErrorType
	Retryable  bool
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Type, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

// Unwrap implements error unwrapping for errors.Is and errors.As. A nested
// FetchError is skipped so only the outermost category matches a sentinel.
func (e *FetchError) Unwrap() error {
	if inner, ok := e.Cause.(*FetchError); ok {
		return inner.Unwrap()
	}
	return e.Cause
}

// Is reports whether the error belongs to one of the category sentinels.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		switch e.Type {
		case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServer, ErrorTypeClient, ErrorTypeTimeout, ErrorTypeUnknown:
			return true
		}
	case ErrDataSource:
		return e.Type == ErrorTypeDataSource
	case ErrSchema:
		return e.Type == ErrorTypeSchema
	}
	return false
}

// NewNetworkError creates a network error
func NewNetworkError(cause error) *FetchError {
	return &FetchError{
		Type:      ErrorTypeNetwork,
		Retryable: true,
		Message:   "network request failed",
		Cause:     cause,
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(statusCode int) *FetchError {
	return &FetchError{
		Type:       ErrorTypeRateLimit,
		Retryable:  true,
		StatusCode: statusCode,
		Message:    "rate limit exceeded",
	}
}

// NewServerError creates a server error
func NewServerError(statusCode int) *FetchError {
	return &FetchError{
		Type:       ErrorTypeServer,
		Retryable:  true,
		StatusCode: statusCode,
		Message:    "server returned an error",
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

// NewTimeoutError creates a timeout error
func NewTimeoutError(cause error) *FetchError {
	return &FetchError{
		Type:      ErrorTypeTimeout,
		Retryable: true,
		Message:   "request timed out",
		Cause:     cause,
	}
}

// NewDataSourceError creates a reference listing error
func NewDataSourceError(message string, cause error) *FetchError {
	e := &FetchError{
		Type:    ErrorTypeDataSource,
		Message: message,
		Cause:   cause,
	}
	if inner, ok := cause.(*FetchError); ok {
		e.StatusCode = inner.StatusCode
	}
	return e
}

// NewSchemaError creates a coercion error for one cell of the output table
func NewSchemaError(symbol, column string, cause error) *FetchError {
	return &FetchError{
		Type:    ErrorTypeSchema,
		Message: fmt.Sprintf("cannot coerce column %q for symbol %q", column, symbol),
		Cause:   cause,
	}
}

// ClassifyHTTPError classifies an HTTP status code into an appropriate FetchError
func ClassifyHTTPError(statusCode int) *FetchError {
	switch {
	case statusCode == 429:
		return NewRateLimitError(statusCode)
	case statusCode >= 500:
		return NewServerError(statusCode)
	case statusCode >= 400:
		return NewClientError(statusCode, fmt.Sprintf("client error: HTTP %d", statusCode))
	default:
		return &FetchError{
			Type:       ErrorTypeUnknown,
			Retryable:  false,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		}
	}
}

// ClassifyTransportError turns an error returned by the HTTP client into a FetchError
func ClassifyTransportError(err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError(err)
	}
	return NewNetworkError(err)
}
