package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cheerfulman/arbitrage-fund/internal/external/jisilu"
	"github.com/cheerfulman/arbitrage-fund/internal/fund"
	"github.com/cheerfulman/arbitrage-fund/pkg/config"
	"github.com/cheerfulman/arbitrage-fund/pkg/httputil"
	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the fund listings and print them, no database needed",
	Long: `Fetches the LOF and QDII listings from jisilu.cn, sorts them by
discount rate and prints the top entries. Nothing is persisted; useful
for checking cookies and connectivity.

Example:
  go run ./cmd/arb fetch
  go run ./cmd/arb fetch --limit 50`,
	RunE: runFetch,
}

var fetchLimit int

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 20, "number of funds to print")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	httpClient := httputil.New(log)
	client := jisilu.NewClient(cfg.Jisilu, httpClient, log)

	payload, err := client.FetchAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch fund listings: %w", err)
	}

	ds := fund.Parse(payload, log)
	ds.SortBy(cfg.Analysis.SortField)

	fmt.Printf("%-10s %-16s %8s %10s %-12s %-12s %s\n",
		"CODE", "NAME", "PRICE", "DISCOUNT", "APPLY", "REDEEM", "NAV DATE")

	for i, r := range ds.Records() {
		if i >= fetchLimit {
			break
		}
		fmt.Printf("%-10s %-16s %8s %10s %-12s %-12s %s\n",
			r.FundCode, r.FundName, r.Price, r.DiscountRate,
			r.ApplyStatus, r.RedeemStatus, r.NavDate)
	}

	fmt.Printf("\n%d funds total\n", ds.Len())
	return nil
}
