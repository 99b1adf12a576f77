// internal/server/models.go
package server

import "time"

// VerifyTokenRequest is the body of POST /v1/verify-token (and of the
// administrative DELETE on the same path).
type VerifyTokenRequest struct {
	WalletAddress   string `json:"wallet_address"`
	TokenID         int64  `json:"token_id"`
	ContractAddress string `json:"contract_address"`
	Network         string `json:"network"`
}

// VerifyTokenResponse mirrors the request plus the verification outcome.
// ExpiresAt reflects the cache TTL, not on-chain expiry; license tokens are
// perpetual.
type VerifyTokenResponse struct {
	Valid           bool       `json:"valid"`
	Tier            *string    `json:"tier"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Network         string     `json:"network"`
	ContractAddress string     `json:"contract_address"`
	TokenID         int64      `json:"token_id"`
	WalletAddress   string     `json:"wallet_address"`
}

type TokenInfo struct {
	TokenID         int64  `json:"token_id"`
	Tier            string `json:"tier"`
	Network         string `json:"network"`
	ContractAddress string `json:"contract_address"`
}

type UserTiersResponse struct {
	WalletAddress string      `json:"wallet_address"`
	Tiers         []TokenInfo `json:"tiers"`
}

type TokenDetailsResponse struct {
	TokenID         int64   `json:"token_id"`
	Tier            string  `json:"tier"`
	Network         string  `json:"network"`
	ContractAddress string  `json:"contract_address"`
	Owner           *string `json:"owner"`
}

type HealthResponse struct {
	Status       string          `json:"status"`
	Service      string          `json:"service"`
	Networks     map[string]bool `json:"networks"`
	CacheEnabled bool            `json:"cache_enabled"`
}

// UserAccessResponse describes what a resolved tier grants: the quota row and
// the feature set. Limits use -1 for unlimited.
type UserAccessResponse struct {
	UserID   string           `json:"user_id"`
	Tier     string           `json:"tier"`
	Features []string         `json:"features"`
	Limits   map[string]int64 `json:"limits"`
}

type RateLimitConsumeRequest struct {
	UserID    string `json:"user_id"`
	LimitType string `json:"limit_type"`
}

// RateLimitConsumeResponse reports the admission decision. Remaining is nil
// for unlimited quotas and when the limiter fails open.
type RateLimitConsumeResponse struct {
	Allowed   bool   `json:"allowed"`
	Remaining *int64 `json:"remaining"`
	LimitType string `json:"limit_type"`
	Tier      string `json:"tier"`
}

// ErrorBody is the envelope for non-2xx responses.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
