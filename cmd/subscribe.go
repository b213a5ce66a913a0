package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"giveflow/config"
	"giveflow/pkg/history"
	"giveflow/pkg/types"
)

var projectID int64

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <monthly-usd>",
	Short: "Create a monthly streaming subscription",
	Long: `Create a recurring monthly donation. The monthly amount is converted to a
per-second streaming rate and authorized with an EIP-712 signature; the
deposit funds the stream.

Cross-chain sources sign on the settlement chain, then deposit from the
source chain with the subscription call attached to the bridge deposit.

Examples:
  giveflow subscribe 10 --token 0x3c499c542cef5e3811e1192ce70d8cc03d5c3359 --chain-id 137 --decimals 6 --symbol USDC
  giveflow subscribe 25 --token 0x833589fcd6edb6e08f4c7c32d4f71b54bda02913 --chain-id 8453 --decimals 6 --symbol USDC --project-id 7`,
	Args: cobra.ExactArgs(1),
	Run:  runSubscribe,
}

func init() {
	rootCmd.AddCommand(subscribeCmd)
	addTokenFlags(subscribeCmd)
	subscribeCmd.Flags().Int64Var(&projectID, "project-id", 0, "Project id the subscription funds")
	subscribeCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

// stageLabels are the progress messages shown per state machine stage
var stageLabels = map[types.SubscriptionStage]string{
	types.StageSwitching:   "Switching to settlement chain...",
	types.StageSigning:     "Waiting for subscription signature...",
	types.StageBuilding:    "Building cross-chain instructions...",
	types.StageReturning:   "Switching back to source chain...",
	types.StageQuoting:     "Re-quoting with subscription attached...",
	types.StageApproving:   "Checking and submitting approvals...",
	types.StageSubscribing: "Submitting subscription deposit...",
	types.StageConfirming:  "Waiting for confirmation...",
}

func runSubscribe(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if cfg.SubscriptionContract == "" {
		printError(fmt.Errorf("subscription contract not configured. Set GIVEFLOW_SUBSCRIPTION_CONTRACT"))
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

	// The first month's deposit equals the monthly amount
	q, err := service.CalculateQuote(ctx, source, args[0], w.Address(), cfg.SubscriptionContract)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if !jsonOutput {
		displayQuote(q, source, cfg)
		if !noConfirm && !confirm(fmt.Sprintf("Start a monthly subscription of $%s?", args[0])) {
			fmt.Println("\nSubscription cancelled.")
			os.Exit(0)
		}
		s.Start()
	}

	onProgress := func(stage types.SubscriptionStage) {
		if jsonOutput {
			return
		}
		if label, ok := stageLabels[stage]; ok {
			s.Suffix = " " + label
		}
	}

	result, err := service.ExecuteSubscription(ctx, q, source, args[0], cfg.RecipientAddress, big.NewInt(projectID), onProgress)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	recordHistory(&history.Record{
		ID:            result.ID,
		Kind:          history.KindSubscription,
		Path:          result.Path,
		SourceSymbol:  source.Symbol,
		SourceChainID: source.ChainID,
		AmountUSD:     result.MonthlyUSD,
		TxHashes:      result.TxHashes,
	})

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	color.Green("\nSubscription created!")
	fmt.Printf("  Monthly:  $%s\n", result.MonthlyUSD)
	fmt.Printf("  Rate:     %s units/second\n", result.RatePerSecond)
	fmt.Printf("  Signer:   %s\n", result.Signer)
	for i, txHash := range result.TxHashes {
		fmt.Printf("  TX %d:     %s\n", i+1, txHash)
	}
	printSuccess("The stream starts once the deposit confirms on chain.")
}
