package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"giveflow/config"
	"giveflow/pkg/parser"
	"giveflow/pkg/types"
)

var (
	tokenAddress  string
	tokenChainID  int64
	tokenDecimals int
	tokenSymbol   string
)

var quoteCmd = &cobra.Command{
	Use:   "quote <recipient-amount>",
	Short: "Quote a donation without executing it",
	Long: `Calculate how much of the source token a donation costs so that the
recipient receives the given USDC amount on the settlement chain.

Examples:
  # Donate from WMATIC on Polygon (same-chain swap)
  giveflow quote 100 --token 0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270 --chain-id 137 --decimals 18 --symbol WMATIC

  # Donate from USDC on Base (cross-chain)
  giveflow quote 100 --token 0x833589fcd6edb6e08f4c7c32d4f71b54bda02913 --chain-id 8453 --decimals 6 --symbol USDC`,
	Args: cobra.ExactArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	addTokenFlags(quoteCmd)
}

func addTokenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&tokenAddress, "token", "", "Source token: symbol ref like 'USDC@137' or a 0x address (REQUIRED)")
	cmd.Flags().Int64Var(&tokenChainID, "chain-id", 0, "Source chain id (when not part of --token)")
	cmd.Flags().IntVar(&tokenDecimals, "decimals", 18, "Source token decimals (for raw addresses)")
	cmd.Flags().StringVar(&tokenSymbol, "symbol", "", "Source token symbol (display only, for raw addresses)")
	_ = cmd.MarkFlagRequired("token")
}

func sourceTokenFromFlags() (types.Token, error) {
	token, err := parser.ParseTokenRef(tokenAddress, tokenChainID)
	if err != nil {
		return types.Token{}, err
	}

	// Raw addresses carry no metadata, take it from the flags
	if token.Symbol == "" {
		token.Symbol = tokenSymbol
		token.Decimals = tokenDecimals
	}

	return token, nil
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	source, err := sourceTokenFromFlags()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	service, w, err := buildEngine(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer w.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}

	result, err := service.CalculateQuote(context.Background(), source, args[0], w.Address(), cfg.RecipientAddress)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	displayQuote(result, source, cfg)
}

func displayQuote(q *types.NormalizedQuote, source types.Token, cfg *config.Config) {
	fmt.Println()
	color.Cyan("Donation Quote")
	fmt.Println("==============")
	fmt.Printf("  Path:           %s\n", q.Path)
	fmt.Printf("  You pay:        %s %s (chain %d)\n", q.UserPays, source.Symbol, q.OriginChainID)
	fmt.Printf("  Recipient gets: %s %s (chain %d)\n", formatOut(q.ExpectedOutputAmount, cfg), cfg.SettlementSymbol, q.DestinationChainID)
	fmt.Printf("  Minimum:        %s %s\n", formatOut(q.MinOutputAmount, cfg), cfg.SettlementSymbol)
	fmt.Printf("  Total fees:     $%s\n", q.Fees.TotalUSD)
	if q.ExpectedFillTimeSec > 0 {
		fmt.Printf("  Est. time:      %ds\n", q.ExpectedFillTimeSec)
	}
	fmt.Println()
}
