// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Networks     []NetworkConfig    `mapstructure:"networks"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Verification VerificationConfig `mapstructure:"verification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address        string `mapstructure:"address"`
	ReadTimeout    int    `mapstructure:"read_timeout"`    // milliseconds
	WriteTimeout   int    `mapstructure:"write_timeout"`   // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// NetworkConfig describes one blockchain connection: its RPC endpoint and the
// license-token contract deployed on it. Networks are dialed once at startup.
type NetworkConfig struct {
	Name            string `mapstructure:"name"`
	RPCURL          string `mapstructure:"rpc_url"`
	ContractAddress string `mapstructure:"contract_address"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig points at the account-subscription authority consumed by the
// tier resolver.
type AuthConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// VerificationConfig holds oracle and cache tuning.
type VerificationConfig struct {
	CacheTTL         int `mapstructure:"cache_ttl"`          // seconds
	ChainCallTimeout int `mapstructure:"chain_call_timeout"` // milliseconds
	ProbeTimeout     int `mapstructure:"probe_timeout"`      // milliseconds
	MaxRetries       int `mapstructure:"max_retries"`
	RetryBackoff     int `mapstructure:"retry_backoff"` // milliseconds, initial delay
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Network returns the configuration for a named network, if present.
func (c *Config) Network(name string) (NetworkConfig, bool) {
	for _, n := range c.Networks {
		if n.Name == name {
			return n, true
		}
	}
	return NetworkConfig{}, false
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if len(cfg.Networks) == 0 {
		return fmt.Errorf("at least one network must be configured")
	}
	seen := map[string]bool{}
	for _, n := range cfg.Networks {
		if n.Name == "" || n.RPCURL == "" {
			return fmt.Errorf("network entries require name and rpc_url")
		}
		if seen[n.Name] {
			return fmt.Errorf("duplicate network %q", n.Name)
		}
		seen[n.Name] = true
	}
	if cfg.Verification.CacheTTL <= 0 {
		return fmt.Errorf("verification.cache_ttl must be positive")
	}
	return nil
}
