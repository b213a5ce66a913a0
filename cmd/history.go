package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"giveflow/pkg/history"
)

var historyKind string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past donations and subscriptions",
	Long: `Show the local record of donations and subscriptions executed from this
machine, newest first.`,
	Run: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "Filter by kind: donation or subscription")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	storage, err := history.NewStorage("")
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var records []*history.Record
	switch historyKind {
	case "":
		records = storage.List()
	case string(history.KindDonation), string(history.KindSubscription):
		records = storage.ListByKind(history.RecordKind(historyKind))
	default:
		printError(fmt.Errorf("unknown kind '%s'. Use 'donation' or 'subscription'", historyKind))
		os.Exit(1)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(records) == 0 {
		fmt.Println("\nNo history yet.")
		return
	}

	color.Cyan("\nHistory (%d):\n", len(records))
	for _, r := range records {
		fmt.Printf("  %s  %-12s  $%-8s  %s@%d  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.Kind,
			r.AmountUSD,
			r.SourceSymbol,
			r.SourceChainID,
			r.Path,
		)
		for _, txHash := range r.TxHashes {
			fmt.Printf("      %s\n", txHash)
		}
	}
	fmt.Println()
}

// recordHistory appends a record best-effort, a failure never fails the
// command that already executed on chain
func recordHistory(record *history.Record) {
	storage, err := history.NewStorage("")
	if err != nil {
		return
	}
	_ = storage.Append(record)
}
