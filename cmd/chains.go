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
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List chains supported by the bridge provider",
	Long: `List the chains the bridge provider can route donations from. The list is
cached for a few minutes, so repeated calls do not hit the provider.`,
	Run: runChains,
}

func init() {
	rootCmd.AddCommand(chainsCmd)
}

func runChains(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
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
		s.Suffix = " Fetching supported chains..."
		s.Start()
	}

	chains, err := service.SupportedChains(context.Background())
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(chains, "", "  ")
		fmt.Println(string(data))
		return
	}

	color.Cyan("\nSupported chains (%d):\n", len(chains))
	fmt.Printf("  %-10s %s\n", "CHAIN ID", "NAME")
	for _, c := range chains {
		marker := ""
		if c.ChainID == cfg.SettlementChainID {
			marker = color.GreenString("  (settlement)")
		}
		fmt.Printf("  %-10d %s%s\n", c.ChainID, c.Name, marker)
	}
	fmt.Println()
}
