package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cheerfulman/arbitrage-fund/internal/external/coze"
	"github.com/cheerfulman/arbitrage-fund/internal/external/jisilu"
	"github.com/cheerfulman/arbitrage-fund/internal/pipeline"
	"github.com/cheerfulman/arbitrage-fund/internal/store"
	"github.com/cheerfulman/arbitrage-fund/pkg/config"
	"github.com/cheerfulman/arbitrage-fund/pkg/database"
	"github.com/cheerfulman/arbitrage-fund/pkg/httputil"
	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis pipeline pass and exit",
	Long: `Runs the full pipeline once: fetch the LOF and QDII listings,
persist all snapshots, screen for arbitrage candidates, request the AI
analysis and persist the results.

Example:
  go run ./cmd/arb analyze`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := store.Migrate(cmd.Context(), db, log); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	httpClient := httputil.New(log)
	jisiluClient := jisilu.NewClient(cfg.Jisilu, httpClient, log)
	cozeClient := coze.NewClient(cfg.Coze, log)

	fundRepo := store.NewFundRepository(db, log)
	analysisRepo := store.NewAnalysisRepository(db, log)

	pipe := pipeline.New(cfg.Analysis, jisiluClient, cozeClient, fundRepo, analysisRepo, log)

	result, err := pipe.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	fmt.Printf("Funds fetched:   %d\n", result.FundsFetched)
	fmt.Printf("Funds qualified: %d\n", result.FundsQualified)
	fmt.Printf("Analyses saved:  %d\n", result.AnalysesSaved)

	return nil
}
