// internal/access/ratelimit.go
package access

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"token-verification-service/internal/common/logger"
	"token-verification-service/internal/common/metrics"
	"token-verification-service/internal/tier"
)

// counterTTL keeps day-scoped counters alive for 24h from creation; the
// date-suffixed key makes the rollover reset implicit.
const counterTTL = 86400

// checkAndIncrScript performs the read-compare-increment atomically in Redis
// so concurrent requests for one principal cannot both pass the boundary.
// Returns remaining quota after the increment, or -1 when already at the
// limit (in which case the counter is not advanced).
var checkAndIncrScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if current >= limit then
	return -1
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return limit - current
`)

// Limiter enforces per-principal, per-day quotas from the static tier limits
// table. When the counter store is unreachable it fails open: availability is
// prioritized over strict quota enforcement.
type Limiter struct {
	client  *redis.Client
	enabled bool
	logger  logger.Logger
	clock   func() time.Time
}

// NewLimiter probes the counter store; a failed probe leaves the limiter in
// permanent fail-open mode for the process lifetime.
func NewLimiter(ctx context.Context, client *redis.Client, log logger.Logger) *Limiter {
	l := &Limiter{
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "rate-limiter"}),
		clock:  time.Now,
	}

	if client == nil {
		l.logger.Warn("no redis client configured, rate limiting disabled", nil)
		return l
	}

	if err := client.Ping(ctx).Err(); err != nil {
		l.logger.Warn("redis not available, rate limiting disabled", map[string]interface{}{
			"error": err.Error(),
		})
		return l
	}

	l.enabled = true
	return l
}

// Enabled reports whether quotas are actually enforced.
func (l *Limiter) Enabled() bool {
	return l.enabled
}

func (l *Limiter) key(principal, limitType string) string {
	day := l.clock().UTC().Format("2006-01-02")
	return fmt.Sprintf("rate_limit:%s:%s:%s", principal, limitType, day)
}

// CheckAndIncrement admits or rejects one unit of usage for the principal.
// Unlimited quotas short-circuit without touching storage and report nil
// remaining. Store failures fail open with a logged degradation.
func (l *Limiter) CheckAndIncrement(ctx context.Context, principal string, t tier.Tier, limitType string) (bool, *int64) {
	limit := tier.LimitsFor(t).Quota(limitType)

	if limit == tier.Unlimited {
		metrics.RateLimitDecisions.WithLabelValues(limitType, "allowed").Inc()
		return true, nil
	}
	if limit <= 0 {
		zero := int64(0)
		metrics.RateLimitDecisions.WithLabelValues(limitType, "denied").Inc()
		return false, &zero
	}

	if !l.enabled {
		metrics.RateLimitDecisions.WithLabelValues(limitType, "fail_open").Inc()
		return true, nil
	}

	remaining, err := checkAndIncrScript.Run(ctx, l.client, []string{l.key(principal, limitType)}, limit, counterTTL).Int64()
	if err != nil {
		l.logger.Warn("rate limit store unreachable, failing open", map[string]interface{}{
			"principal": principal,
			"limitType": limitType,
			"error":     err.Error(),
		})
		metrics.RateLimitDecisions.WithLabelValues(limitType, "fail_open").Inc()
		return true, nil
	}

	if remaining < 0 {
		zero := int64(0)
		metrics.RateLimitDecisions.WithLabelValues(limitType, "denied").Inc()
		return false, &zero
	}

	metrics.RateLimitDecisions.WithLabelValues(limitType, "allowed").Inc()
	return true, &remaining
}

// Reset deletes the current day's counter for a principal early.
// Administrative override; the common path relies on day rollover instead.
func (l *Limiter) Reset(ctx context.Context, principal, limitType string) error {
	if !l.enabled {
		return nil
	}
	return l.client.Del(ctx, l.key(principal, limitType)).Err()
}
