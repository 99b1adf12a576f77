// internal/access/resolver.go
package access

import (
	"context"
	"fmt"
	"time"

	commonhttp "token-verification-service/internal/common/http"
	"token-verification-service/internal/common/logger"
	"token-verification-service/internal/common/metrics"

	"token-verification-service/internal/cache"
	"token-verification-service/internal/oracle"
	"token-verification-service/internal/tier"
)

// Verifier is the ownership oracle as the resolver sees it. Satisfied by
// *oracle.Oracle; tests substitute mocks with call counting.
type Verifier interface {
	Verify(ctx context.Context, key oracle.Key) (oracle.Result, error)
}

// Resolver maps a principal to an effective tier by combining the
// account-subscription authority with on-chain token ownership. Resolution
// never fails the caller: every degraded path collapses to Free.
type Resolver struct {
	authBaseURL string
	httpClient  *commonhttp.Client
	cache       *cache.Cache
	verifier    Verifier
	logger      logger.Logger
}

func NewResolver(authBaseURL string, authTimeout time.Duration, c *cache.Cache, v Verifier, log logger.Logger) *Resolver {
	if authTimeout <= 0 {
		authTimeout = 5 * time.Second
	}
	return &Resolver{
		authBaseURL: authBaseURL,
		httpClient:  commonhttp.NewClient(authTimeout),
		cache:       c,
		verifier:    v,
		logger:      log.WithFields(map[string]interface{}{"component": "tier-resolver"}),
	}
}

type userTierResponse struct {
	Tier string `json:"tier"`
}

// ResolveForUser asks the account-subscription authority for the user's tier.
// Timeouts and non-2xx responses resolve to Free so tier resolution never
// blocks the request path.
func (r *Resolver) ResolveForUser(ctx context.Context, userID string) tier.Tier {
	url := fmt.Sprintf("%s/v1/users/%s/tier", r.authBaseURL, userID)

	var resp userTierResponse
	if err := r.httpClient.GetJSON(ctx, url, &resp); err != nil {
		r.logger.Warn("subscription authority lookup failed, treating as free", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		metrics.TierResolutions.WithLabelValues("fallback_free").Inc()
		return tier.Free
	}

	metrics.TierResolutions.WithLabelValues("account").Inc()
	return tier.Parse(resp.Tier)
}

// ResolveForWallet verifies each candidate token key (cache first, oracle on
// miss) and returns the highest tier among valid results, Free when none are.
// A query error on one key skips that key rather than failing the whole
// resolution.
func (r *Resolver) ResolveForWallet(ctx context.Context, walletAddress string, knownTokens []oracle.Key) tier.Tier {
	highest := tier.Free
	found := false

	for _, key := range knownTokens {
		result, ok := r.cache.Get(ctx, key)
		if !ok {
			verified, err := r.verifier.Verify(ctx, key)
			if err != nil {
				r.logger.Warn("token verification failed, skipping key", map[string]interface{}{
					"wallet":  walletAddress,
					"network": key.Network,
					"tokenId": key.TokenID.String(),
					"error":   err.Error(),
				})
				continue
			}
			r.cache.Put(ctx, key, verified)
			result = &verified
		}

		if !result.Valid || result.Tier == nil {
			continue
		}
		highest = tier.Max(highest, *result.Tier)
		found = true
	}

	if found {
		metrics.TierResolutions.WithLabelValues("wallet").Inc()
	}
	return highest
}

// ResolveEffective combines both authorities under the max-of-both rule: the
// higher rank wins regardless of which authority reported it. An empty wallet
// skips the on-chain side entirely.
func (r *Resolver) ResolveEffective(ctx context.Context, userID, walletAddress string, knownTokens []oracle.Key) tier.Tier {
	accountTier := r.ResolveForUser(ctx, userID)

	if walletAddress == "" || len(knownTokens) == 0 {
		return accountTier
	}

	walletTier := r.ResolveForWallet(ctx, walletAddress, knownTokens)
	return tier.Max(accountTier, walletTier)
}
