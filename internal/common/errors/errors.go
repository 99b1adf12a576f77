// Package errors provides standardized error handling for the token
// verification service and the access-control primitives built on it.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Chain / oracle errors
	ErrCodeNetworkUnavailable ErrorCode = "NETWORK_UNAVAILABLE"
	ErrCodeQueryError         ErrorCode = "QUERY_ERROR"
	ErrCodeChainCallTimeout   ErrorCode = "CHAIN_CALL_TIMEOUT"
	ErrCodeTokenNotFound      ErrorCode = "TOKEN_NOT_FOUND"

	// Infrastructure degradation (absorbed locally, never surfaced to clients)
	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// Access control
	ErrCodeAccessDenied          ErrorCode = "ACCESS_DENIED"
	ErrCodeTierSourceUnavailable ErrorCode = "TIER_SOURCE_UNAVAILABLE"

	// Request handling
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewNetworkUnavailableError signals that no usable connection exists for a
// blockchain network. Non-retryable within the process lifetime: networks that
// fail the startup probe stay excluded until restart.
func NewNetworkUnavailableError(network string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNetworkUnavailable,
		Message:   "Blockchain network is not available",
		Details:   fmt.Sprintf("network: %s", network),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryError creates a retryable chain query error. This covers RPC-level
// failures and malformed contract responses, as distinct from a clean
// "not the owner" result.
func NewQueryError(network string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryError,
		Message:   "Chain query failed",
		Details:   fmt.Sprintf("network: %s, error: %s", network, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewChainCallTimeoutError creates a retryable timeout error for a chain call.
func NewChainCallTimeoutError(network string) *StandardError {
	return &StandardError{
		Code:      ErrCodeChainCallTimeout,
		Message:   "Chain call exceeded timeout threshold",
		Details:   fmt.Sprintf("network: %s", network),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTokenNotFoundError creates a non-retryable error for a token with no
// resolvable tier.
func NewTokenNotFoundError(tokenID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenNotFound,
		Message:   "Token not found",
		Details:   fmt.Sprintf("tokenId: %d", tokenID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError records a cache store outage. Callers degrade to
// pass-through mode rather than propagating this to clients.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Verification cache is unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError records a rate-limit store outage. The limiter
// fails open rather than propagating this to clients.
func NewStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Rate limit store is unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAccessDeniedError creates a non-retryable feature gate denial.
func NewAccessDeniedError(tier, feature string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAccessDenied,
		Message:   fmt.Sprintf("Feature '%s' requires a higher tier", feature),
		Details:   fmt.Sprintf("currentTier: %s", tier),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTierSourceUnavailableError creates a retryable error for a failed
// subscription authority lookup.
func NewTierSourceUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTierSourceUnavailable,
		Message:   "Subscription authority lookup failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable request validation error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. HTTP Mapping
// ==========================

// HTTPStatus maps internal error codes to the status the verification
// endpoints return. QueryError deliberately maps to 502 so clients can tell
// infrastructure failure apart from a confirmed valid:false result.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeTokenNotFound:
		return http.StatusNotFound
	case ErrCodeAccessDenied:
		return http.StatusForbidden
	case ErrCodeNetworkUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeQueryError, ErrCodeChainCallTimeout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 4. Utility Functions
// ==========================

// IsRetryable reports whether an error carries a retryable StandardError.
func IsRetryable(err error) bool {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Retryable
	}
	return false
}

// GetRetryCount returns the bounded retry budget per error code. Confirmed
// negative verification results carry no error and are never retried.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeQueryError, ErrCodeTierSourceUnavailable:
		return 3
	case ErrCodeChainCallTimeout:
		return 2
	default:
		return 0
	}
}
