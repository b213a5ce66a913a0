package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"giveflow/config"
	"giveflow/pkg/bridge"
	"giveflow/pkg/engine"
	"giveflow/pkg/metrics"
	"giveflow/pkg/swap"
	"giveflow/pkg/types"
	"giveflow/pkg/wallet"
)

var rootCmd = &cobra.Command{
	Use:   "giveflow",
	Short: "A CLI for routing donations into USDC on a settlement chain",
	Long: `giveflow routes a donation held in any token on any EVM chain so that the
fixed recipient receives USDC on the settlement chain, as a one-time payment
or a monthly streaming subscription.

Examples:
  giveflow quote 100 --token 0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270 --chain-id 137 --decimals 18 --symbol WMATIC
  giveflow donate 25 --token 0x3c499c542cef5e3811e1192ce70d8cc03d5c3359 --chain-id 137 --decimals 6 --symbol USDC
  giveflow subscribe 10 --token 0x3c499c542cef5e3811e1192ce70d8cc03d5c3359 --chain-id 137 --decimals 6 --symbol USDC
  giveflow chains`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}

// newLogger builds the process logger from the configured level
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(lvl)
}

// buildEngine wires the donation engine from configuration. It returns the
// wallet too so commands can close its RPC connections.
func buildEngine(cfg *config.Config) (*engine.Service, *wallet.EVMWallet, error) {
	log := newLogger(cfg.LogLevel)

	if cfg.PrivateKey == "" {
		return nil, nil, fmt.Errorf("private key not configured. Set GIVEFLOW_PRIVATE_KEY or add private_key to .giveflow.yaml")
	}
	if len(cfg.Networks) == 0 {
		return nil, nil, fmt.Errorf("no networks configured. Add a networks section to .giveflow.yaml")
	}

	networks := make(map[int64]wallet.Network, len(cfg.Networks))
	for _, nc := range cfg.Networks {
		networks[nc.ChainID] = wallet.Network{
			ChainID:  nc.ChainID,
			RPCUrl:   nc.RPCUrl,
			GasPrice: nc.GasPrice,
			GasLimit: nc.GasLimit,
		}
	}

	w, err := wallet.NewEVMWallet(cfg.PrivateKey, networks, cfg.SettlementChainID, log)
	if err != nil {
		return nil, nil, err
	}

	settlementClient, err := w.Client(cfg.SettlementChainID)
	if err != nil {
		w.Close()
		return nil, nil, fmt.Errorf("failed to connect to settlement chain: %w", err)
	}

	settlement := types.Token{
		ChainID:  cfg.SettlementChainID,
		Address:  cfg.SettlementToken,
		Symbol:   cfg.SettlementSymbol,
		Decimals: cfg.SettlementDecimals,
	}

	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr)
	}

	service := engine.New(engine.Deps{
		Wallet:               w,
		Reader:               wallet.NewReader(settlementClient),
		Bridge:               bridge.NewClient(cfg.BridgeBaseURL, cfg.SettlementChainID, cfg.SettlementToken, log),
		Swap:                 swap.NewClient(cfg.SwapBaseURL, log),
		Settlement:           settlement,
		SubscriptionContract: cfg.SubscriptionContract,
		Log:                  log,
	})

	return service, w, nil
}
