package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tokenflight/pkg/swaperr"
)

// EnvPrefix is prepended to every environment variable, e.g.
// TOKENFLIGHT_API_ENDPOINT or TOKENFLIGHT_CACHE_BACKEND.
const EnvPrefix = "TOKENFLIGHT"

// Cache backends
const (
	CacheMemory  = "memory"
	CacheFile    = "file"
	CacheLevelDB = "leveldb"
)

// Config holds the application configuration
type Config struct {
	APIEndpoint    string
	APIKey         string
	RequestTimeout time.Duration
	StreamTimeout  time.Duration
	Streaming      bool
	SlippageBps    int
	RateLimit      float64
	RateBurst      int

	Cache  CacheConfig
	Log    LogConfig
	EVM    EVMConfig
	Solana SolanaConfig
}

// CacheConfig selects the token metadata store
type CacheConfig struct {
	Backend string
	Path    string
	TTL     time.Duration
}

// LogConfig configures slog output
type LogConfig struct {
	Level  string
	Format string
}

// EVMConfig holds the settings of the EVM wallet
type EVMConfig struct {
	RPCURL     string
	PrivateKey string
	ChainID    int64
	GasLimit   *uint64 // Optional, estimated when nil
	GasPrice   *int64  // Optional, in wei; suggested by the node when nil
}

// SolanaConfig holds the settings of the Solana wallet
type SolanaConfig struct {
	RPCURL        string
	PrivateKey    string // Base58 encoded
	Commitment    string // finalized, confirmed or processed
	SkipPreflight bool
}

var globalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_endpoint", "")
	v.SetDefault("api_key", "")
	v.SetDefault("request_timeout", 15*time.Second)
	v.SetDefault("stream_timeout", 30*time.Second)
	v.SetDefault("streaming", true)
	v.SetDefault("slippage_bps", 50)
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("rate_burst", 5)

	v.SetDefault("cache.backend", CacheFile)
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.ttl", 30*24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("evm.rpc_url", "")
	v.SetDefault("evm.private_key", "")
	v.SetDefault("evm.chain_id", 0)

	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.private_key", "")
	v.SetDefault("solana.commitment", "confirmed")
	v.SetDefault("solana.skip_preflight", false)
}

// Load reads configuration from the config file, if any, and environment
// variables. An empty configFile searches for .tokenflight.yaml in $HOME
// and the working directory.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".tokenflight")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, swaperr.Wrap(swaperr.InvalidConfig, err, "failed to read config file")
		}
	}

	cfg := &Config{
		APIEndpoint:    strings.TrimSpace(v.GetString("api_endpoint")),
		APIKey:         v.GetString("api_key"),
		RequestTimeout: v.GetDuration("request_timeout"),
		StreamTimeout:  v.GetDuration("stream_timeout"),
		Streaming:      v.GetBool("streaming"),
		SlippageBps:    v.GetInt("slippage_bps"),
		RateLimit:      v.GetFloat64("rate_limit"),
		RateBurst:      v.GetInt("rate_burst"),
		Cache: CacheConfig{
			Backend: strings.ToLower(v.GetString("cache.backend")),
			Path:    v.GetString("cache.path"),
			TTL:     v.GetDuration("cache.ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		EVM: EVMConfig{
			RPCURL:     v.GetString("evm.rpc_url"),
			PrivateKey: v.GetString("evm.private_key"),
			ChainID:    v.GetInt64("evm.chain_id"),
		},
		Solana: SolanaConfig{
			RPCURL:        v.GetString("solana.rpc_url"),
			PrivateKey:    v.GetString("solana.private_key"),
			Commitment:    strings.ToLower(v.GetString("solana.commitment")),
			SkipPreflight: v.GetBool("solana.skip_preflight"),
		},
	}
	if v.IsSet("evm.gas_limit") {
		gasLimit := v.GetUint64("evm.gas_limit")
		cfg.EVM.GasLimit = &gasLimit
	}
	if v.IsSet("evm.gas_price") {
		gasPrice := v.GetInt64("evm.gas_price")
		cfg.EVM.GasPrice = &gasPrice
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// Validate checks the configuration for values the application cannot run with
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return swaperr.Newf(swaperr.InvalidConfig, format, args...).WithDetail("key", key)
	}

	if c.APIEndpoint == "" {
		return invalid("api_endpoint", "API endpoint not set. Please set %s_API_ENDPOINT or add api_endpoint to .tokenflight.yaml", EnvPrefix)
	}
	if u, err := url.Parse(c.APIEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("api_endpoint", "invalid API endpoint %q", c.APIEndpoint)
	}
	if c.RequestTimeout <= 0 {
		return invalid("request_timeout", "request_timeout must be positive")
	}
	if c.StreamTimeout <= 0 {
		return invalid("stream_timeout", "stream_timeout must be positive")
	}
	if c.SlippageBps < 0 || c.SlippageBps > 10_000 {
		return invalid("slippage_bps", "slippage_bps must be between 0 and 10000, got %d", c.SlippageBps)
	}
	if c.RateLimit < 0 {
		return invalid("rate_limit", "rate_limit must not be negative")
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheFile, CacheLevelDB:
	default:
		return invalid("cache.backend", "unknown cache backend %q (want memory, file or leveldb)", c.Cache.Backend)
	}
	if c.Cache.Backend == CacheLevelDB && c.Cache.Path == "" {
		return invalid("cache.path", "cache.path is required for the leveldb backend")
	}
	if c.Cache.TTL <= 0 {
		return invalid("cache.ttl", "cache.ttl must be positive")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format", "unknown log format %q (want text or json)", c.Log.Format)
	}

	switch c.Solana.Commitment {
	case "", "finalized", "confirmed", "processed":
	default:
		return invalid("solana.commitment", "unknown solana commitment %q", c.Solana.Commitment)
	}
	return nil
}

// Get returns the global configuration, loading it on first use
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
