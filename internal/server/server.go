// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xeipuuv/gojsonschema"

	"token-verification-service/internal/cache"
	"token-verification-service/internal/chain"
	"token-verification-service/internal/common/config"
	"token-verification-service/internal/common/errors"
	"token-verification-service/internal/common/logger"
	"token-verification-service/internal/common/observability"
	"token-verification-service/internal/oracle"
	"token-verification-service/internal/tier"
)

// Oracle is the verification backend as the HTTP layer sees it. Satisfied by
// *oracle.Oracle; tests substitute mocks.
type Oracle interface {
	Verify(ctx context.Context, key oracle.Key) (oracle.Result, error)
	ResolveTier(ctx context.Context, key oracle.Key) (*tier.Tier, error)
}

// HealthReporter reports per-network connectivity. Satisfied by
// *chain.Registry.
type HealthReporter interface {
	HealthReport(ctx context.Context) map[string]bool
}

// TierResolver maps a principal to an effective tier. Satisfied by
// *access.Resolver.
type TierResolver interface {
	ResolveEffective(ctx context.Context, userID, walletAddress string, knownTokens []oracle.Key) tier.Tier
}

// RateLimiter admits or rejects usage against per-tier daily quotas.
// Satisfied by *access.Limiter.
type RateLimiter interface {
	CheckAndIncrement(ctx context.Context, principal string, t tier.Tier, limitType string) (bool, *int64)
	Reset(ctx context.Context, principal, limitType string) error
}

const verifyTokenSchemaJSON = `{
	"type": "object",
	"required": ["wallet_address", "token_id", "contract_address", "network"],
	"properties": {
		"wallet_address": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"},
		"token_id": {"type": "integer", "minimum": 0},
		"contract_address": {"type": "string", "pattern": "^0x[0-9a-fA-F]{40}$"},
		"network": {"type": "string", "enum": ["ethereum", "polygon", "arbitrum"]}
	},
	"additionalProperties": false
}`

// Server is the token verification HTTP surface consumed by the other
// services of the platform.
type Server struct {
	cfg      config.ServerConfig
	appName  string
	registry HealthReporter
	oracle   Oracle
	cache    *cache.Cache
	resolver TierResolver
	limiter  RateLimiter
	gate     *tier.Gate
	obs      *observability.Observability
	logger   logger.Logger
	schema   *gojsonschema.Schema
	handler  http.Handler
}

func New(cfg config.ServerConfig, appName string, registry HealthReporter, orc Oracle, c *cache.Cache, resolver TierResolver, limiter RateLimiter, obs *observability.Observability, log logger.Logger) (*Server, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(verifyTokenSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compiling verify-token schema: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		appName:  appName,
		registry: registry,
		oracle:   orc,
		cache:    c,
		resolver: resolver,
		limiter:  limiter,
		gate:     tier.NewGate(),
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "http-server"}),
		schema:   schema,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/verify-token", s.handleVerifyToken)
	mux.HandleFunc("DELETE /v1/verify-token", s.handleInvalidateToken)
	mux.HandleFunc("GET /v1/user-tiers/{wallet_address}", s.handleUserTiers)
	mux.HandleFunc("GET /v1/tokens/{token_id}", s.handleTokenDetails)
	mux.HandleFunc("GET /v1/users/{user_id}/access", s.handleUserAccess)
	mux.HandleFunc("POST /v1/rate-limit/consume", s.handleRateLimitConsume)
	mux.HandleFunc("DELETE /v1/rate-limit/{user_id}/{limit_type}", s.handleRateLimitReset)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = s.withMiddleware(mux)
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// withMiddleware applies request ID, CORS, per-request timeout, and
// structured request logging around the mux.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	timeout := time.Duration(s.cfg.RequestTimeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))

		s.logger.Info("request handled", map[string]interface{}{
			"requestId": requestID,
			"method":    r.Method,
			"path":      r.URL.Path,
			"duration":  time.Since(start).String(),
		})
		if s.obs != nil {
			s.obs.RecordRequest(ctx, r.URL.Path, r.Method)
			s.obs.RecordRequestDuration(ctx, r.URL.Path, time.Since(start))
		}
	})
}

// handleVerifyToken verifies token ownership and returns the tier. Results
// for confirmed owners are cached; a query error returns an explicit error
// status so clients never mistake infrastructure failure for non-ownership.
func (s *Server) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	req, stdErr := s.decodeVerifyRequest(r)
	if stdErr != nil {
		s.writeError(w, stdErr)
		return
	}

	key, err := oracle.NewKey(req.Network, req.ContractAddress, req.WalletAddress, req.TokenID)
	if err != nil {
		s.writeError(w, errors.NewValidationFailedError(err.Error()))
		return
	}

	if cached, ok := s.cache.Get(r.Context(), key); ok {
		s.writeJSON(w, http.StatusOK, s.verifyResponse(req, *cached))
		return
	}

	result, err := s.oracle.Verify(r.Context(), key)
	if err != nil {
		s.writeError(w, s.classifyOracleError(req.Network, err))
		return
	}

	if result.Valid {
		// Negative results are returned uncached; only confirmed
		// ownership is worth a cache slot.
		s.cache.Put(r.Context(), key, result)
	}

	s.writeJSON(w, http.StatusOK, s.verifyResponse(req, result))
}

// handleInvalidateToken drops the cache entry for a verification key.
// Administrative, for use after a known on-chain transfer.
func (s *Server) handleInvalidateToken(w http.ResponseWriter, r *http.Request) {
	req, stdErr := s.decodeVerifyRequest(r)
	if stdErr != nil {
		s.writeError(w, stdErr)
		return
	}

	key, err := oracle.NewKey(req.Network, req.ContractAddress, req.WalletAddress, req.TokenID)
	if err != nil {
		s.writeError(w, errors.NewValidationFailedError(err.Error()))
		return
	}

	s.cache.Invalidate(r.Context(), key)
	w.WriteHeader(http.StatusNoContent)
}

// handleUserTiers returns the tiers for all tokens a wallet holds. Token
// enumeration needs an indexer and is out of scope upstream, so the list is
// always empty. Known limitation, kept deliberately.
func (s *Server) handleUserTiers(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet_address")
	s.writeJSON(w, http.StatusOK, UserTiersResponse{
		WalletAddress: wallet,
		Tiers:         []TokenInfo{},
	})
}

// handleTokenDetails looks up a token's tier without an ownership check.
func (s *Server) handleTokenDetails(w http.ResponseWriter, r *http.Request) {
	tokenID, err := strconv.ParseInt(r.PathValue("token_id"), 10, 64)
	if err != nil {
		s.writeError(w, errors.NewValidationFailedError("token_id must be an integer"))
		return
	}

	network := r.URL.Query().Get("network")
	contractAddress := r.URL.Query().Get("contract_address")

	key, err := oracle.NewTokenKey(network, contractAddress, tokenID)
	if err != nil {
		s.writeError(w, errors.NewValidationFailedError(err.Error()))
		return
	}

	t, err := s.oracle.ResolveTier(r.Context(), key)
	if err != nil {
		s.writeError(w, s.classifyOracleError(network, err))
		return
	}
	if t == nil {
		s.writeError(w, errors.NewTokenNotFoundError(tokenID))
		return
	}

	s.writeJSON(w, http.StatusOK, TokenDetailsResponse{
		TokenID:         tokenID,
		Tier:            t.String(),
		Network:         network,
		ContractAddress: contractAddress,
		Owner:           nil,
	})
}

// handleUserAccess resolves the caller's effective tier and returns the
// quotas and features that tier grants. An optional wallet_address query
// parameter brings on-chain holdings into the resolution; without known token
// keys the account-subscription authority alone decides.
func (s *Server) handleUserAccess(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	wallet := r.URL.Query().Get("wallet_address")

	t := s.resolver.ResolveEffective(r.Context(), userID, wallet, nil)
	limits := tier.LimitsFor(t)

	s.writeJSON(w, http.StatusOK, UserAccessResponse{
		UserID:   userID,
		Tier:     t.String(),
		Features: s.gate.ListFeatures(t),
		Limits: map[string]int64{
			tier.LimitMaxContacts:    limits.MaxContacts,
			tier.LimitMaxWorkflows:   limits.MaxWorkflows,
			tier.LimitAPICallsPerDay: limits.APICallsPerDay,
		},
	})
}

// handleRateLimitConsume admits or rejects one unit of usage for a principal.
// Consuming services call this instead of holding their own counters.
func (s *Server) handleRateLimitConsume(w http.ResponseWriter, r *http.Request) {
	var req RateLimitConsumeRequest
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<16)).Decode(&req); err != nil {
		s.writeError(w, errors.NewValidationFailedError("request body is not valid JSON"))
		return
	}
	if req.UserID == "" || req.LimitType == "" {
		s.writeError(w, errors.NewValidationFailedError("user_id and limit_type are required"))
		return
	}

	t := s.resolver.ResolveEffective(r.Context(), req.UserID, "", nil)
	allowed, remaining := s.limiter.CheckAndIncrement(r.Context(), req.UserID, t, req.LimitType)

	status := http.StatusOK
	if !allowed {
		status = http.StatusTooManyRequests
	}
	s.writeJSON(w, status, RateLimitConsumeResponse{
		Allowed:   allowed,
		Remaining: remaining,
		LimitType: req.LimitType,
		Tier:      t.String(),
	})
}

// handleRateLimitReset clears the current day's counter for a principal.
// Administrative override.
func (s *Server) handleRateLimitReset(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	limitType := r.PathValue("limit_type")

	if err := s.limiter.Reset(r.Context(), userID, limitType); err != nil {
		s.writeError(w, errors.NewStoreUnavailableError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		Service:      s.appName,
		Networks:     s.registry.HealthReport(r.Context()),
		CacheEnabled: s.cache.Enabled(),
	})
}

// decodeVerifyRequest validates the body against the compiled JSON schema
// before unmarshalling, so malformed requests fail with field-level detail.
func (s *Server) decodeVerifyRequest(r *http.Request) (*VerifyTokenRequest, *errors.StandardError) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, 1<<16))
	if err != nil {
		return nil, errors.NewValidationFailedError("unreadable request body")
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, errors.NewValidationFailedError("request body is not valid JSON")
	}
	if !result.Valid() {
		details := ""
		for i, desc := range result.Errors() {
			if i > 0 {
				details += "; "
			}
			details += desc.String()
		}
		return nil, errors.NewValidationFailedError(details)
	}

	var req VerifyTokenRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.NewValidationFailedError(err.Error())
	}
	return &req, nil
}

func (s *Server) verifyResponse(req *VerifyTokenRequest, result oracle.Result) VerifyTokenResponse {
	resp := VerifyTokenResponse{
		Valid:           result.Valid,
		Network:         req.Network,
		ContractAddress: req.ContractAddress,
		TokenID:         req.TokenID,
		WalletAddress:   req.WalletAddress,
	}
	if result.Tier != nil {
		name := result.Tier.String()
		resp.Tier = &name
	}
	if result.Valid {
		expiresAt := result.VerifiedAt.Add(s.cache.TTL())
		resp.ExpiresAt = &expiresAt
	}
	return resp
}

func (s *Server) classifyOracleError(network string, err error) *errors.StandardError {
	if stderrors.Is(err, chain.ErrNetworkUnavailable) {
		return errors.NewNetworkUnavailableError(network)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewChainCallTimeoutError(network)
	}
	return errors.NewQueryError(network, err)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encoding response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, stdErr *errors.StandardError) {
	s.writeJSON(w, errors.HTTPStatus(stdErr.Code), ErrorBody{
		Error: ErrorDetail{
			Code:    string(stdErr.Code),
			Message: stdErr.Message,
			Details: stdErr.Details,
		},
	})
}
