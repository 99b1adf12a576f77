package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-verification-service/internal/common/config"
	"token-verification-service/internal/common/logger"
)

// fakeClient scripts probe and call behavior per network.
type fakeClient struct {
	chainIDErr error
	closed     bool
}

func (f *fakeClient) ChainID(ctx context.Context) (*big.Int, error) {
	if f.chainIDErr != nil {
		return nil, f.chainIDErr
	}
	return big.NewInt(1), nil
}

func (f *fakeClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, nil
}

func (f *fakeClient) Close() {
	f.closed = true
}

func fakeDialer(clients map[string]*fakeClient, dialErrs map[string]error) Dialer {
	return func(ctx context.Context, rpcURL string) (Client, error) {
		if err, ok := dialErrs[rpcURL]; ok {
			return nil, err
		}
		return clients[rpcURL], nil
	}
}

func testNetworks() []config.NetworkConfig {
	return []config.NetworkConfig{
		{Name: "ethereum", RPCURL: "eth-rpc", ContractAddress: "0x1111111111111111111111111111111111111111"},
		{Name: "polygon", RPCURL: "poly-rpc", ContractAddress: "0x2222222222222222222222222222222222222222"},
	}
}

func TestNewConnectsConfiguredNetworks(t *testing.T) {
	clients := map[string]*fakeClient{
		"eth-rpc":  {},
		"poly-rpc": {},
	}
	r := NewWithDialer(context.Background(), testNetworks(), time.Second,
		logger.NewTestLogger(t), fakeDialer(clients, nil))
	defer r.Close()

	eth, err := r.Handle("ethereum")
	require.NoError(t, err)
	assert.Equal(t, "ethereum", eth.Name)
	assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"), eth.Contract)

	_, err = r.Handle("polygon")
	assert.NoError(t, err)
}

func TestNewExcludesNetworksFailingProbe(t *testing.T) {
	clients := map[string]*fakeClient{
		"eth-rpc":  {},
		"poly-rpc": {chainIDErr: fmt.Errorf("connection refused")},
	}
	r := NewWithDialer(context.Background(), testNetworks(), time.Second,
		logger.NewTestLogger(t), fakeDialer(clients, nil))
	defer r.Close()

	_, err := r.Handle("ethereum")
	assert.NoError(t, err)

	_, err = r.Handle("polygon")
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
	assert.True(t, clients["poly-rpc"].closed, "failed probe must release the connection")
}

func TestNewExcludesNetworksFailingDial(t *testing.T) {
	clients := map[string]*fakeClient{"eth-rpc": {}}
	dialErrs := map[string]error{"poly-rpc": errors.New("no route to host")}

	r := NewWithDialer(context.Background(), testNetworks(), time.Second,
		logger.NewTestLogger(t), fakeDialer(clients, dialErrs))
	defer r.Close()

	_, err := r.Handle("polygon")
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
}

func TestHandleUnknownNetwork(t *testing.T) {
	r := NewWithDialer(context.Background(), testNetworks(), time.Second,
		logger.NewTestLogger(t), fakeDialer(map[string]*fakeClient{"eth-rpc": {}, "poly-rpc": {}}, nil))
	defer r.Close()

	_, err := r.Handle("solana")
	assert.ErrorIs(t, err, ErrNetworkUnavailable)
}

func TestHealthReport(t *testing.T) {
	ethClient := &fakeClient{}
	clients := map[string]*fakeClient{
		"eth-rpc":  ethClient,
		"poly-rpc": {chainIDErr: errors.New("timeout")},
	}
	r := NewWithDialer(context.Background(), testNetworks(), time.Second,
		logger.NewTestLogger(t), fakeDialer(clients, nil))
	defer r.Close()

	report := r.HealthReport(context.Background())
	assert.Equal(t, map[string]bool{"ethereum": true, "polygon": false}, report)

	// A network that degrades after startup reports false on re-probe.
	ethClient.chainIDErr = errors.New("connection reset")
	report = r.HealthReport(context.Background())
	assert.False(t, report["ethereum"])
}

func TestCloseShutsDownConnections(t *testing.T) {
	clients := map[string]*fakeClient{
		"eth-rpc":  {},
		"poly-rpc": {},
	}
	r := NewWithDialer(context.Background(), testNetworks(), time.Second,
		logger.NewTestLogger(t), fakeDialer(clients, nil))

	r.Close()
	assert.True(t, clients["eth-rpc"].closed)
	assert.True(t, clients["poly-rpc"].closed)
}
