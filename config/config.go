package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"swap-engine/pkg/types"
)

// Config holds the application configuration
type Config struct {
	LogLevel        string
	MetricsAddr     string
	ProviderTimeout time.Duration
	CacheDir        string

	RPC        map[types.Chain]string
	Thorchain  ThorchainConfig
	OneClick   OneClickConfig
	OneInch    OneInchConfig
	Jupiter    JupiterConfig
	Uniswap    UniswapConfig
	Simulation SimulationConfig
	Signer     SignerConfig
}

// ThorchainConfig configures the thornode quote endpoint
type ThorchainConfig struct {
	BaseURL string
}

// OneClickConfig configures the NEAR Intents 1Click API
type OneClickConfig struct {
	JWTToken string
	BaseURL  string
}

// OneInchConfig configures the 1inch swap API
type OneInchConfig struct {
	APIKey  string
	BaseURL string
	RPS     float64
}

// JupiterConfig configures the Jupiter swap API
type JupiterConfig struct {
	BaseURL string
}

// UniswapConfig lists the V2-style router deployed on each EVM chain
type UniswapConfig struct {
	Routers map[types.Chain]string
}

// SimulationConfig configures the simulator
type SimulationConfig struct {
	ReceiptTTL time.Duration
}

// SignerConfig holds the keys used to sign swaps. Either may be empty.
type SignerConfig struct {
	EVMPrivateKey    string
	SolanaPrivateKey string
}

var globalConfig *Config

var defaultRouters = map[types.Chain]string{
	types.Ethereum:  "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
	types.Base:      "0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24",
	types.Arbitrum:  "0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24",
	types.BSC:       "0x10ED43C718714eb63d5aA57B78B54704E256024E",
	types.Avalanche: "0x60aE616a2155Ee3d9A68541Ba4544862310933d4",
}

// Load reads configuration from environment variables and the config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".swap-engine")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	cfg, err := load(v)
	if err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

// LoadFile reads configuration from an explicit file plus environment variables
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// SWAP_ENGINE_ONECLICK_JWT_TOKEN -> oneclick.jwt_token
	v.SetEnvPrefix("SWAP_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional, but a broken one is reported
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		LogLevel:        v.GetString("log_level"),
		MetricsAddr:     v.GetString("metrics.addr"),
		ProviderTimeout: v.GetDuration("provider_timeout"),
		CacheDir:        v.GetString("cache.dir"),
		RPC:             make(map[types.Chain]string),
		Thorchain: ThorchainConfig{
			BaseURL: v.GetString("thorchain.base_url"),
		},
		OneClick: OneClickConfig{
			JWTToken: v.GetString("oneclick.jwt_token"),
			BaseURL:  v.GetString("oneclick.base_url"),
		},
		OneInch: OneInchConfig{
			APIKey:  v.GetString("oneinch.api_key"),
			BaseURL: v.GetString("oneinch.base_url"),
			RPS:     v.GetFloat64("oneinch.rps"),
		},
		Jupiter: JupiterConfig{
			BaseURL: v.GetString("jupiter.base_url"),
		},
		Uniswap: UniswapConfig{
			Routers: make(map[types.Chain]string),
		},
		Simulation: SimulationConfig{
			ReceiptTTL: v.GetDuration("simulation.receipt_ttl"),
		},
		Signer: SignerConfig{
			EVMPrivateKey:    v.GetString("signer.evm_private_key"),
			SolanaPrivateKey: v.GetString("signer.solana_private_key"),
		},
	}

	// Per-chain keys are read one by one so env overrides apply to them too
	for _, chain := range types.Chains() {
		if url := v.GetString("rpc." + string(chain)); url != "" {
			cfg.RPC[chain] = url
		}
		if router := v.GetString("uniswap.routers." + string(chain)); router != "" {
			cfg.Uniswap.Routers[chain] = router
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("provider_timeout", "15s")
	v.SetDefault("thorchain.base_url", "https://thornode.ninerealms.com")
	v.SetDefault("oneclick.base_url", "https://1click.chaindefuser.com")
	v.SetDefault("oneinch.base_url", "https://api.1inch.dev")
	v.SetDefault("oneinch.rps", 1)
	v.SetDefault("jupiter.base_url", "https://lite-api.jup.ag")
	v.SetDefault("simulation.receipt_ttl", "30s")
	for chain, router := range defaultRouters {
		v.SetDefault("uniswap.routers."+string(chain), router)
	}
}

// Validate checks values that would otherwise fail deep inside a swap
func (c *Config) Validate() error {
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("provider_timeout must be positive")
	}
	if c.Simulation.ReceiptTTL <= 0 {
		return fmt.Errorf("simulation.receipt_ttl must be positive")
	}
	if c.OneInch.RPS < 0 {
		return fmt.Errorf("oneinch.rps cannot be negative")
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
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
