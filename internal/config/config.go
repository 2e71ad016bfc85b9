// Package config loads engine configuration from an optional YAML file and
// DEXCORE_-prefixed environment variables via viper.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PoolConfig declares one tradable pair for a configured adapter.
type PoolConfig struct {
	TokenA string  `mapstructure:"token_a"`
	TokenB string  `mapstructure:"token_b"`
	Fee    float64 `mapstructure:"fee"`
}

// AdapterConfig declares one Uniswap V2 compatible venue.
type AdapterConfig struct {
	Name        string       `mapstructure:"name"`
	Router      string       `mapstructure:"router"`
	GasEstimate float64      `mapstructure:"gas_estimate"`
	Pools       []PoolConfig `mapstructure:"pools"`
}

// Config is the engine's full configuration surface.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	ChainRPC string `mapstructure:"chain_rpc"`

	Metrics struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"metrics"`

	MarketData struct {
		Endpoint  string `mapstructure:"endpoint"`
		StreamURL string `mapstructure:"stream_url"`
	} `mapstructure:"market_data"`

	Slippage struct {
		TolerancePercent   float64 `mapstructure:"tolerance_percent"`
		MaxSlippageBps     int64   `mapstructure:"max_slippage_bps"`
		RejectZeroSlippage bool    `mapstructure:"reject_zero_slippage"`
	} `mapstructure:"slippage"`

	Router struct {
		CacheTTL         time.Duration `mapstructure:"cache_ttl"`
		MaxChunkAttempts int           `mapstructure:"max_chunk_attempts"`
	} `mapstructure:"router"`

	Resilience struct {
		FailureThreshold int           `mapstructure:"failure_threshold"`
		RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
		RetryAttempts    int           `mapstructure:"retry_attempts"`
		RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
		RetryMaxDelay    time.Duration `mapstructure:"retry_max_delay"`
	} `mapstructure:"resilience"`

	Adapters []AdapterConfig `mapstructure:"adapters"`
}

// Load reads configuration. path may be empty; defaults and environment
// variables then drive everything.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DEXCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("slippage.tolerance_percent", 1.0)
	v.SetDefault("slippage.max_slippage_bps", 50)
	v.SetDefault("slippage.reject_zero_slippage", true)
	v.SetDefault("router.cache_ttl", 30*time.Second)
	v.SetDefault("router.max_chunk_attempts", 4)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.recovery_timeout", 30*time.Second)
	v.SetDefault("resilience.retry_attempts", 3)
	v.SetDefault("resilience.retry_base_delay", 100*time.Millisecond)
	v.SetDefault("resilience.retry_max_delay", 30*time.Second)
}
