package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "arb",
	Short: "Closed-end fund arbitrage analysis service",
	Long: `arb - LOF/QDII fund arbitrage analysis

Fetches fund listings from jisilu.cn, screens for discount arbitrage
candidates, asks an AI bot for per-fund analyses and serves the results
over HTTP.

Usage:
  go run ./cmd/arb [command]

Examples:
  go run ./cmd/arb serve
  go run ./cmd/arb analyze
  go run ./cmd/arb fetch`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
