package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a store or transport error with a stable error code.
//
// Codes have the form KM-<AREA>-<NNNN>, where the numeric part mirrors the
// HTTP status the error maps to at the transport boundary.
type DomainError struct {
	Code    string // Error code (e.g., "KM-KV-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HTTPStatus maps an error to the status code used by the HTTP transport.
// Errors that are not DomainErrors map to 500.
func HTTPStatus(err error) int {
	var de *DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(de, ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(de, ErrCapacityExceeded):
		return http.StatusConflict
	case errors.Is(de, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(de, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(de, ErrRateLimited):
		return http.StatusTooManyRequests
	case IsValidation(de), errors.Is(de, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(de, ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsValidation reports whether err is one of the input validation errors
// that reject a request before any shard is touched.
func IsValidation(err error) bool {
	return errors.Is(err, ErrKeyEmpty) ||
		errors.Is(err, ErrKeyTooLong) ||
		errors.Is(err, ErrKeyInvalid) ||
		errors.Is(err, ErrValueEmpty) ||
		errors.Is(err, ErrValueTooLong) ||
		errors.Is(err, ErrValueInvalid)
}

// ============================================================================
// Store Errors (KV)
// ============================================================================

var (
	// ErrKeyEmpty indicates an empty key was supplied.
	ErrKeyEmpty = NewDomainError("KM-KV-4000", "key must not be empty")

	// ErrKeyTooLong indicates the key exceeds the configured length limit.
	ErrKeyTooLong = NewDomainError("KM-KV-4001", "key too long")

	// ErrValueTooLong indicates the value exceeds the configured length limit.
	ErrValueTooLong = NewDomainError("KM-KV-4002", "value too long")

	// ErrValueEmpty indicates an empty value was supplied.
	ErrValueEmpty = NewDomainError("KM-KV-4003", "value must not be empty")

	// ErrKeyInvalid indicates the key contains a line break.
	ErrKeyInvalid = NewDomainError("KM-KV-4004", "key must not contain line breaks")

	// ErrValueInvalid indicates the value contains a line break.
	ErrValueInvalid = NewDomainError("KM-KV-4005", "value must not contain line breaks")

	// ErrKeyNotFound indicates the key has no active entry.
	ErrKeyNotFound = NewDomainError("KM-KV-4040", "key not found")

	// ErrCapacityExceeded indicates the target shard has no free slot for a new key.
	ErrCapacityExceeded = NewDomainError("KM-KV-4090", "shard capacity exceeded")
)

// ============================================================================
// Transport and System Errors
// ============================================================================

var (
	// ErrUnauthorized indicates a missing or wrong API key.
	ErrUnauthorized = NewDomainError("KM-AUTH-4010", "invalid or missing api key")

	// ErrForbidden indicates the client address is not allowed.
	ErrForbidden = NewDomainError("KM-AUTH-4030", "forbidden")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("KM-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("KM-SYS-4290", "too many requests")

	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("KM-SYS-5000", "internal server error")

	// ErrStorage indicates a persistence layer error.
	ErrStorage = NewDomainError("KM-SYS-5001", "storage error")

	// ErrNotReady indicates the store has not finished recovery.
	ErrNotReady = NewDomainError("KM-SYS-5030", "store is recovering")
)
