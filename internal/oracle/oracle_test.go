package oracle

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-verification-service/internal/chain"
	"token-verification-service/internal/common/config"
	"token-verification-service/internal/common/logger"
	"token-verification-service/internal/tier"
)

const (
	testContract = "0x1111111111111111111111111111111111111111"
	testWallet   = "0xabcdef0123456789abcdef0123456789abcdef01"
)

var testABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(licenseTokenABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}()

func packOwner(t *testing.T, owner common.Address) []byte {
	t.Helper()
	out, err := testABI.Methods["ownerOf"].Outputs.Pack(owner)
	require.NoError(t, err)
	return out
}

func packTier(t *testing.T, name string) []byte {
	t.Helper()
	out, err := testABI.Methods["getTier"].Outputs.Pack(name)
	require.NoError(t, err)
	return out
}

// scriptedClient dispatches contract calls on the method selector. The
// per-method functions receive the 1-based attempt number so tests can script
// transient failures.
type scriptedClient struct {
	ownerOf      func(attempt int) ([]byte, error)
	getTier      func(attempt int) ([]byte, error)
	ownerOfCalls int
	getTierCalls int
}

func (c *scriptedClient) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (c *scriptedClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	switch {
	case bytes.Equal(msg.Data[:4], testABI.Methods["ownerOf"].ID):
		c.ownerOfCalls++
		return c.ownerOf(c.ownerOfCalls)
	case bytes.Equal(msg.Data[:4], testABI.Methods["getTier"].ID):
		c.getTierCalls++
		return c.getTier(c.getTierCalls)
	default:
		return nil, errors.New("unexpected selector")
	}
}

func (c *scriptedClient) Close() {}

func newTestOracle(t *testing.T, client chain.Client, cfg Config) *Oracle {
	t.Helper()

	dialer := func(ctx context.Context, rpcURL string) (chain.Client, error) {
		return client, nil
	}
	registry := chain.NewWithDialer(context.Background(), []config.NetworkConfig{
		{Name: "ethereum", RPCURL: "test-rpc", ContractAddress: testContract},
	}, time.Second, logger.NewTestLogger(t), dialer)
	t.Cleanup(registry.Close)

	o, err := New(registry, cfg, logger.NewTestLogger(t))
	require.NoError(t, err)
	return o
}

func testKey(t *testing.T) Key {
	t.Helper()
	key, err := NewKey("ethereum", testContract, testWallet, 42)
	require.NoError(t, err)
	return key
}

func TestVerifyOwnerWithTier(t *testing.T) {
	client := &scriptedClient{
		ownerOf: func(int) ([]byte, error) {
			return packOwner(t, common.HexToAddress(testWallet)), nil
		},
		getTier: func(int) ([]byte, error) {
			return packTier(t, "gold"), nil
		},
	}
	o := newTestOracle(t, client, Config{})

	result, err := o.Verify(context.Background(), testKey(t))
	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.NotNil(t, result.Tier)
	assert.Equal(t, tier.Gold, *result.Tier)
	assert.False(t, result.VerifiedAt.IsZero())
}

func TestVerifyOwnerMatchIgnoresHexCase(t *testing.T) {
	// The contract answers with the same address spelled in upper-case hex.
	upper := "0x" + strings.ToUpper(testWallet[2:])
	client := &scriptedClient{
		ownerOf: func(int) ([]byte, error) {
			return packOwner(t, common.HexToAddress(upper)), nil
		},
		getTier: func(int) ([]byte, error) {
			return packTier(t, "silver"), nil
		},
	}
	o := newTestOracle(t, client, Config{})

	result, err := o.Verify(context.Background(), testKey(t))
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestVerifyNonOwner(t *testing.T) {
	client := &scriptedClient{
		ownerOf: func(int) ([]byte, error) {
			return packOwner(t, common.HexToAddress("0x9999999999999999999999999999999999999999")), nil
		},
		getTier: func(int) ([]byte, error) {
			t.Fatal("getTier must not run for a non-owner")
			return nil, nil
		},
	}
	o := newTestOracle(t, client, Config{})

	result, err := o.Verify(context.Background(), testKey(t))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Nil(t, result.Tier)
	assert.Equal(t, 0, client.getTierCalls)
}

func TestVerifyNonexistentToken(t *testing.T) {
	client := &scriptedClient{
		ownerOf: func(int) ([]byte, error) {
			return nil, errors.New("execution reverted: ERC721: invalid token ID")
		},
	}
	o := newTestOracle(t, client, Config{})

	result, err := o.Verify(context.Background(), testKey(t))
	require.NoError(t, err, "a clean revert is a negative answer, not a failure")
	assert.False(t, result.Valid)
	assert.Equal(t, 1, client.ownerOfCalls, "reverts are deterministic and must not be retried")
}

func TestVerifyQueryErrorSurfaces(t *testing.T) {
	client := &scriptedClient{
		ownerOf: func(int) ([]byte, error) {
			return nil, errors.New("rpc: method not supported")
		},
	}
	o := newTestOracle(t, client, Config{MaxRetries: 3})

	_, err := o.Verify(context.Background(), testKey(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuery)
	assert.Equal(t, 1, client.ownerOfCalls, "deterministic failures must not be retried")
}

func TestVerifyRetriesTransientFailures(t *testing.T) {
	client := &scriptedClient{
		ownerOf: func(attempt int) ([]byte, error) {
			if attempt < 3 {
				return nil, errors.New("connection refused")
			}
			return packOwner(t, common.HexToAddress(testWallet)), nil
		},
		getTier: func(int) ([]byte, error) {
			return packTier(t, "bronze"), nil
		},
	}
	o := newTestOracle(t, client, Config{MaxRetries: 3, RetryBackoff: time.Millisecond})

	result, err := o.Verify(context.Background(), testKey(t))
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 3, client.ownerOfCalls)
}

func TestVerifyRetryBudgetExhausted(t *testing.T) {
	client := &scriptedClient{
		ownerOf: func(int) ([]byte, error) {
			return nil, errors.New("connection reset by peer")
		},
	}
	o := newTestOracle(t, client, Config{MaxRetries: 2, RetryBackoff: time.Millisecond})

	_, err := o.Verify(context.Background(), testKey(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuery)
	assert.Equal(t, 2, client.ownerOfCalls)
}

func TestResolveTierWithoutTiering(t *testing.T) {
	tests := []struct {
		name    string
		getTier func(int) ([]byte, error)
	}{
		{
			name: "contract reverts",
			getTier: func(int) ([]byte, error) {
				return nil, errors.New("execution reverted")
			},
		},
		{
			name: "contract returns empty tier",
			getTier: func(int) ([]byte, error) {
				return packTier(t, ""), nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptedClient{getTier: tt.getTier}
			o := newTestOracle(t, client, Config{})

			resolved, err := o.ResolveTier(context.Background(), testKey(t))
			require.NoError(t, err)
			assert.Nil(t, resolved)
		})
	}
}

func TestResolveTierUnknownNameDefaultsToFree(t *testing.T) {
	client := &scriptedClient{
		getTier: func(int) ([]byte, error) {
			return packTier(t, "platinum"), nil
		},
	}
	o := newTestOracle(t, client, Config{})

	resolved, err := o.ResolveTier(context.Background(), testKey(t))
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, tier.Free, *resolved)
}

func TestVerifyUnavailableNetwork(t *testing.T) {
	client := &scriptedClient{}
	o := newTestOracle(t, client, Config{})

	key, err := NewKey("polygon", testContract, testWallet, 42)
	require.NoError(t, err)

	_, err = o.Verify(context.Background(), key)
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.ErrNetworkUnavailable)
}
