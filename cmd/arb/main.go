package main

import (
	"os"

	"github.com/cheerfulman/arbitrage-fund/cmd/arb/commands"
)

// main is the entry point for the arbitrage-fund CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
