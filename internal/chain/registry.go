// internal/chain/registry.go
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"token-verification-service/internal/common/config"
	"token-verification-service/internal/common/logger"
)

// ErrNetworkUnavailable is returned for unknown networks and for networks
// that failed their startup connectivity probe.
var ErrNetworkUnavailable = errors.New("NETWORK_UNAVAILABLE")

// Client is the read-only subset of ethclient.Client the service uses.
// *ethclient.Client satisfies it; tests substitute fakes.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Dialer opens a connection to an RPC endpoint.
type Dialer func(ctx context.Context, rpcURL string) (Client, error)

func defaultDialer(ctx context.Context, rpcURL string) (Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Network is one live blockchain connection plus the license-token contract
// configured for it. Immutable after registry construction; shared read-only
// across concurrent oracle calls.
type Network struct {
	Name     string
	Contract common.Address
	client   Client
}

// Client returns the connection handle. Borrowed per call; callers must not
// retain it past a lookup.
func (n *Network) Client() Client {
	return n.client
}

// Registry holds one connection per configured network. Networks that fail
// the startup probe are excluded and never retried within the process
// lifetime; a restart is required to pick them up again.
type Registry struct {
	networks   map[string]*Network
	configured []string
	logger     logger.Logger
}

// New dials and probes every configured network. Probe failures are non-fatal:
// the network is recorded unavailable and startup continues with the rest.
func New(ctx context.Context, cfgs []config.NetworkConfig, probeTimeout time.Duration, log logger.Logger) *Registry {
	return NewWithDialer(ctx, cfgs, probeTimeout, log, defaultDialer)
}

// NewWithDialer is New with an injected dialer, used by tests.
func NewWithDialer(ctx context.Context, cfgs []config.NetworkConfig, probeTimeout time.Duration, log logger.Logger, dial Dialer) *Registry {
	r := &Registry{
		networks: make(map[string]*Network),
		logger:   log.WithFields(map[string]interface{}{"component": "chain-registry"}),
	}

	for _, cfg := range cfgs {
		r.configured = append(r.configured, cfg.Name)

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		client, err := dial(probeCtx, cfg.RPCURL)
		if err == nil {
			_, err = client.ChainID(probeCtx)
		}
		cancel()

		if err != nil {
			if client != nil {
				client.Close()
			}
			r.logger.Warn("network unavailable at startup, excluding", map[string]interface{}{
				"network": cfg.Name,
				"error":   err.Error(),
			})
			continue
		}

		r.networks[cfg.Name] = &Network{
			Name:     cfg.Name,
			Contract: common.HexToAddress(cfg.ContractAddress),
			client:   client,
		}
		r.logger.Info("connected to network", map[string]interface{}{
			"network": cfg.Name,
		})
	}

	return r
}

// Handle resolves a network name to its connection. Callers must branch on
// the returned error; unknown and unavailable networks are reported the same
// way.
func (r *Registry) Handle(network string) (*Network, error) {
	n, ok := r.networks[network]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNetworkUnavailable, network)
	}
	return n, nil
}

// HealthReport re-probes each connected network and reports connectivity per
// configured network. Networks excluded at startup always report false.
func (r *Registry) HealthReport(ctx context.Context) map[string]bool {
	report := make(map[string]bool, len(r.configured))
	for _, name := range r.configured {
		n, ok := r.networks[name]
		if !ok {
			report[name] = false
			continue
		}
		_, err := n.client.ChainID(ctx)
		report[name] = err == nil
	}
	return report
}

// Close shuts down all network connections.
func (r *Registry) Close() {
	for _, n := range r.networks {
		n.client.Close()
	}
}
