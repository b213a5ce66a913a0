package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// NetworkConfig holds the connection settings for one EVM network
type NetworkConfig struct {
	ChainID  int64   `mapstructure:"chain_id"`
	RPCUrl   string  `mapstructure:"rpc_url"`
	GasPrice *int64  `mapstructure:"gas_price"` // optional override, wei
	GasLimit *uint64 `mapstructure:"gas_limit"` // optional override
}

// Config holds the application configuration
type Config struct {
	// Settlement side: the recipient always receives this token on this chain
	SettlementChainID  int64  `mapstructure:"settlement_chain_id"`
	SettlementToken    string `mapstructure:"settlement_token"`
	SettlementSymbol   string `mapstructure:"settlement_symbol"`
	SettlementDecimals int    `mapstructure:"settlement_decimals"`

	// RecipientAddress is the fixed donation recipient
	RecipientAddress string `mapstructure:"recipient_address"`

	// SubscriptionContract is the streaming subscription contract on the
	// settlement chain
	SubscriptionContract string `mapstructure:"subscription_contract"`

	// Provider endpoints
	BridgeBaseURL string `mapstructure:"bridge_base_url"`
	SwapBaseURL   string `mapstructure:"swap_base_url"`

	// PrivateKey signs transactions (hex, 0x prefix optional)
	PrivateKey string `mapstructure:"private_key"`

	// Networks maps a human name to its connection settings
	Networks map[string]NetworkConfig `mapstructure:"networks"`

	// MetricsAddr, when set, serves prometheus metrics (e.g. ":9090")
	MetricsAddr string `mapstructure:"metrics_addr"`

	LogLevel string `mapstructure:"log_level"`
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".giveflow")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("settlement_chain_id", 137) // Polygon
	viper.SetDefault("settlement_token", "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359")
	viper.SetDefault("settlement_symbol", "USDC")
	viper.SetDefault("settlement_decimals", 6)
	viper.SetDefault("bridge_base_url", "https://app.across.to/api")
	viper.SetDefault("swap_base_url", "https://trade-api.gateway.uniswap.org/v1")
	viper.SetDefault("log_level", "info")

	// Read from environment variables
	viper.SetEnvPrefix("GIVEFLOW")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	// AutomaticEnv does not flow through Unmarshal for keys absent from the
	// config file, so scalar overrides are read explicitly
	if key := viper.GetString("private_key"); key != "" {
		cfg.PrivateKey = key
	}
	if recipient := viper.GetString("recipient_address"); recipient != "" {
		cfg.RecipientAddress = recipient
	}
	if contract := viper.GetString("subscription_contract"); contract != "" {
		cfg.SubscriptionContract = contract
	}

	if cfg.RecipientAddress == "" {
		return nil, fmt.Errorf("recipient address not found. Please set GIVEFLOW_RECIPIENT_ADDRESS or create a .giveflow.yaml config file")
	}

	globalConfig = cfg
	return cfg, nil
}

// NetworkByChainID finds a configured network by its chain id
func (c *Config) NetworkByChainID(chainID int64) (NetworkConfig, bool) {
	for _, network := range c.Networks {
		if network.ChainID == chainID {
			return network, true
		}
	}
	return NetworkConfig{}, false
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
