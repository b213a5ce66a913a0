package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"giveflow/config"
	"giveflow/pkg/amount"
	"giveflow/pkg/history"
)

var noConfirm bool

var donateCmd = &cobra.Command{
	Use:   "donate <recipient-amount>",
	Short: "Execute a one-time donation",
	Long: `Quote and execute a one-time donation. The recipient receives the given
USDC amount on the settlement chain; you pay in the source token.

Examples:
  giveflow donate 25 --token 0x3c499c542cef5e3811e1192ce70d8cc03d5c3359 --chain-id 137 --decimals 6 --symbol USDC
  giveflow donate 100 --token 0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270 --chain-id 137 --decimals 18 --symbol WMATIC --yes`,
	Args: cobra.ExactArgs(1),
	Run:  runDonate,
}

func init() {
	rootCmd.AddCommand(donateCmd)
	addTokenFlags(donateCmd)
	donateCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runDonate(cmd *cobra.Command, args []string) {
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

	ctx := context.Background()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}

	q, err := service.CalculateQuote(ctx, source, args[0], w.Address(), cfg.RecipientAddress)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if !jsonOutput {
		displayQuote(q, source, cfg)
	}

	if !noConfirm && !jsonOutput {
		if !confirm(fmt.Sprintf("Send %s %s?", q.UserPays, source.Symbol)) {
			fmt.Println("\nDonation cancelled.")
			os.Exit(0)
		}
	}

	if !jsonOutput {
		s.Suffix = " Executing donation..."
		s.Start()
	}

	result, err := service.ExecuteDonation(ctx, q, source, cfg.RecipientAddress)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	recordHistory(&history.Record{
		ID:            result.ID,
		Kind:          history.KindDonation,
		Path:          result.Path,
		SourceSymbol:  source.Symbol,
		SourceChainID: source.ChainID,
		AmountUSD:     args[0],
		TxHashes:      []string{result.TxHash},
	})

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	color.Green("\nDonation sent!")
	fmt.Printf("  Path:    %s\n", result.Path)
	fmt.Printf("  TX hash: %s\n", result.TxHash)
	printSuccess(fmt.Sprintf("The recipient will receive %s %s.", formatOut(q.ExpectedOutputAmount, cfg), cfg.SettlementSymbol))
}

// confirm asks the user a yes/no question on stdin
func confirm(question string) bool {
	fmt.Printf("\n%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func formatOut(units string, cfg *config.Config) string {
	return amount.FromSmallestUnit(units, cfg.SettlementDecimals)
}
