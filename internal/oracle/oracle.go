// internal/oracle/oracle.go
package oracle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"token-verification-service/internal/chain"
	"token-verification-service/internal/common/logger"
	"token-verification-service/internal/common/metrics"
	"token-verification-service/internal/tier"
)

// ErrQuery marks genuine RPC or contract-response failures, as distinct from
// a clean "not the owner" result. Callers must not coerce it to Valid=false.
var ErrQuery = errors.New("QUERY_ERROR")

// License token read entry points: ERC-721 ownerOf plus the contract's tier
// lookup. Both are view functions.
const licenseTokenABIJSON = `[
	{
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "ownerOf",
		"outputs": [{"name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"name": "getTier",
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Config bounds every chain call and the retry budget for transient failures.
type Config struct {
	CallTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Oracle performs read-only ownership and tier lookups against the license
// token contract on each network. It borrows connections from the registry
// per call and holds no chain state of its own.
type Oracle struct {
	registry *chain.Registry
	abi      abi.ABI
	config   Config
	logger   logger.Logger
}

func New(registry *chain.Registry, cfg Config, log logger.Logger) (*Oracle, error) {
	parsed, err := abi.JSON(strings.NewReader(licenseTokenABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing license token ABI: %w", err)
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	return &Oracle{
		registry: registry,
		abi:      parsed,
		config:   cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "ownership-oracle"}),
	}, nil
}

// VerifyOwnership calls ownerOf(tokenId) and compares the owner to the key's
// wallet, case-insensitively. A token that does not exist (clean revert)
// returns (false, nil); only RPC-level or malformed-response failures return
// an error.
func (o *Oracle) VerifyOwnership(ctx context.Context, key Key) (bool, error) {
	output, err := o.call(ctx, key, "ownerOf", key.TokenID)
	if err != nil {
		if isRevert(err) {
			// ownerOf reverts for nonexistent tokens; that is a clean
			// "no owner" answer, not an infrastructure failure.
			return false, nil
		}
		return false, fmt.Errorf("%w: ownerOf on %s: %w", ErrQuery, key.Network, err)
	}

	results, err := o.abi.Unpack("ownerOf", output)
	if err != nil {
		return false, fmt.Errorf("%w: unpacking ownerOf response: %v", ErrQuery, err)
	}
	owner, ok := results[0].(common.Address)
	if !ok {
		return false, fmt.Errorf("%w: unexpected type for owner: %T", ErrQuery, results[0])
	}

	// common.Address comparison is canonical, which subsumes the
	// case-insensitive match on the hex spellings.
	return owner == key.Wallet, nil
}

// ResolveTier calls getTier(tokenId). Contracts without tiering (revert or
// empty tier string) resolve to nil rather than erroring. Callers invoke this
// only after ownership is confirmed.
func (o *Oracle) ResolveTier(ctx context.Context, key Key) (*tier.Tier, error) {
	output, err := o.call(ctx, key, "getTier", key.TokenID)
	if err != nil {
		if isRevert(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: getTier on %s: %w", ErrQuery, key.Network, err)
	}

	results, err := o.abi.Unpack("getTier", output)
	if err != nil {
		return nil, fmt.Errorf("%w: unpacking getTier response: %v", ErrQuery, err)
	}
	name, ok := results[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected type for tier: %T", ErrQuery, results[0])
	}
	if name == "" {
		return nil, nil
	}

	t := tier.Parse(name)
	return &t, nil
}

// Verify is the combined operation: ownership first, tier lookup only when
// ownership is confirmed. Query errors at either step surface to the caller.
func (o *Oracle) Verify(ctx context.Context, key Key) (Result, error) {
	owned, err := o.VerifyOwnership(ctx, key)
	if err != nil {
		metrics.VerificationsTotal.WithLabelValues(key.Network, "error").Inc()
		return Result{}, err
	}
	if !owned {
		metrics.VerificationsTotal.WithLabelValues(key.Network, "invalid").Inc()
		return Result{Valid: false, Tier: nil, VerifiedAt: time.Now().UTC()}, nil
	}

	t, err := o.ResolveTier(ctx, key)
	if err != nil {
		metrics.VerificationsTotal.WithLabelValues(key.Network, "error").Inc()
		return Result{}, err
	}

	metrics.VerificationsTotal.WithLabelValues(key.Network, "valid").Inc()
	return Result{Valid: true, Tier: t, VerifiedAt: time.Now().UTC()}, nil
}

// call packs and executes one read-only contract call with a bounded timeout,
// retrying transient failures with exponential backoff. Reverts and other
// deterministic failures are returned immediately.
func (o *Oracle) call(ctx context.Context, key Key, method string, args ...interface{}) ([]byte, error) {
	network, err := o.registry.Handle(key.Network)
	if err != nil {
		return nil, err
	}

	contract := key.Contract
	if (contract == common.Address{}) {
		contract = network.Contract
	}

	callData, err := o.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s call: %w", method, err)
	}

	msg := ethereum.CallMsg{
		To:   &contract,
		Data: callData,
	}

	delay := o.config.RetryBackoff
	var lastErr error
	for attempt := 0; attempt < o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, o.config.CallTimeout)
		start := time.Now()
		output, err := network.Client().CallContract(callCtx, msg, nil)
		metrics.ChainCallDuration.WithLabelValues(key.Network, method).Observe(time.Since(start).Seconds())
		cancel()

		if err == nil {
			return output, nil
		}
		lastErr = err

		if !isTransient(err) || ctx.Err() != nil {
			return nil, err
		}
		o.logger.Warn("transient chain call failure, retrying", map[string]interface{}{
			"network": key.Network,
			"method":  method,
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	return nil, lastErr
}

// isRevert detects an EVM execution revert, which the contract uses to answer
// "no such token" and "no tier" rather than to signal infrastructure failure.
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert")
}

// isTransient classifies failures worth a bounded retry: timeouts and
// transport-level errors. Reverts are deterministic and never retried.
func isTransient(err error) bool {
	if err == nil || isRevert(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "EOF")
}
