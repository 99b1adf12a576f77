// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like REDIS_ADDRESS
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment overlay, ignored when absent
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or any parent up to the
// module root, so the binary and tests resolve the same file.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig fills values from well-known environment variables when
// the YAML left them empty. Network RPC/contract variables follow the naming
// of the deployment environment (ETHEREUM_RPC_URL and friends).
func overrideEmptyConfig(cfg *Config) {
	if cfg.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Redis.Address = val
		}
	}
	if cfg.Auth.BaseURL == "" {
		if val := os.Getenv("AUTH_SERVICE_URL"); val != "" {
			cfg.Auth.BaseURL = val
		}
	}

	if len(cfg.Networks) == 0 {
		for _, name := range []string{"ethereum", "polygon", "arbitrum"} {
			upper := strings.ToUpper(name)
			rpc := os.Getenv(upper + "_RPC_URL")
			if rpc == "" {
				continue
			}
			cfg.Networks = append(cfg.Networks, NetworkConfig{
				Name:            name,
				RPCURL:          rpc,
				ContractAddress: os.Getenv("LICENSE_TOKEN_CONTRACT_" + upper),
			})
		}
	} else {
		for i := range cfg.Networks {
			upper := strings.ToUpper(cfg.Networks[i].Name)
			if cfg.Networks[i].RPCURL == "" {
				cfg.Networks[i].RPCURL = os.Getenv(upper + "_RPC_URL")
			}
			if cfg.Networks[i].ContractAddress == "" {
				cfg.Networks[i].ContractAddress = os.Getenv("LICENSE_TOKEN_CONTRACT_" + upper)
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "token-verification-service"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8002"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 15000
	}
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = "localhost:6379"
	}
	if cfg.Auth.BaseURL == "" {
		cfg.Auth.BaseURL = "http://auth-service:8001"
	}
	if cfg.Auth.Timeout == 0 {
		cfg.Auth.Timeout = 5000
	}
	if cfg.Verification.CacheTTL == 0 {
		cfg.Verification.CacheTTL = 300
	}
	if cfg.Verification.ChainCallTimeout == 0 {
		cfg.Verification.ChainCallTimeout = 10000
	}
	if cfg.Verification.ProbeTimeout == 0 {
		cfg.Verification.ProbeTimeout = 5000
	}
	if cfg.Verification.MaxRetries == 0 {
		cfg.Verification.MaxRetries = 3
	}
	if cfg.Verification.RetryBackoff == 0 {
		cfg.Verification.RetryBackoff = 200
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
