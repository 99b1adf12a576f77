package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Address: ":8002"},
		Networks: []NetworkConfig{
			{Name: "ethereum", RPCURL: "https://eth.example/rpc", ContractAddress: "0x1111111111111111111111111111111111111111"},
			{Name: "polygon", RPCURL: "https://poly.example/rpc", ContractAddress: "0x2222222222222222222222222222222222222222"},
		},
		Verification: VerificationConfig{CacheTTL: 300},
	}
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validateConfig(validTestConfig()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing server address", mutate: func(c *Config) { c.Server.Address = "" }},
		{name: "no networks", mutate: func(c *Config) { c.Networks = nil }},
		{name: "network without name", mutate: func(c *Config) { c.Networks[0].Name = "" }},
		{name: "network without rpc url", mutate: func(c *Config) { c.Networks[0].RPCURL = "" }},
		{name: "duplicate network", mutate: func(c *Config) { c.Networks[1].Name = "ethereum" }},
		{name: "non-positive cache ttl", mutate: func(c *Config) { c.Verification.CacheTTL = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, ":8002", cfg.Server.Address)
	assert.Equal(t, 300, cfg.Verification.CacheTTL)
	assert.Equal(t, 10000, cfg.Verification.ChainCallTimeout)
	assert.Equal(t, 3, cfg.Verification.MaxRetries)
	assert.Equal(t, "http://auth-service:8001", cfg.Auth.BaseURL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Server:       ServerConfig{Address: ":9000"},
		Verification: VerificationConfig{CacheTTL: 60},
	}
	applyDefaults(cfg)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 60, cfg.Verification.CacheTTL)
}

func TestNetworkLookup(t *testing.T) {
	cfg := validTestConfig()

	n, ok := cfg.Network("polygon")
	require.True(t, ok)
	assert.Equal(t, "https://poly.example/rpc", n.RPCURL)

	_, ok = cfg.Network("solana")
	assert.False(t, ok)
}

func TestOverrideEmptyConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDRESS", "redis-test:6379")
	t.Setenv("ETHEREUM_RPC_URL", "https://env.example/rpc")
	t.Setenv("LICENSE_TOKEN_CONTRACT_ETHEREUM", "0x3333333333333333333333333333333333333333")

	cfg := &Config{}
	overrideEmptyConfig(cfg)

	assert.Equal(t, "redis-test:6379", cfg.Redis.Address)
	require.Len(t, cfg.Networks, 1)
	assert.Equal(t, "ethereum", cfg.Networks[0].Name)
	assert.Equal(t, "https://env.example/rpc", cfg.Networks[0].RPCURL)
	assert.Equal(t, "0x3333333333333333333333333333333333333333", cfg.Networks[0].ContractAddress)
}
