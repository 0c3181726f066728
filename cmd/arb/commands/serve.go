package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cheerfulman/arbitrage-fund/internal/api"
	"github.com/cheerfulman/arbitrage-fund/internal/api/handlers"
	"github.com/cheerfulman/arbitrage-fund/internal/external/coze"
	"github.com/cheerfulman/arbitrage-fund/internal/external/jisilu"
	"github.com/cheerfulman/arbitrage-fund/internal/pipeline"
	"github.com/cheerfulman/arbitrage-fund/internal/scheduler"
	"github.com/cheerfulman/arbitrage-fund/internal/scheduler/jobs"
	"github.com/cheerfulman/arbitrage-fund/internal/store"
	"github.com/cheerfulman/arbitrage-fund/pkg/config"
	"github.com/cheerfulman/arbitrage-fund/pkg/database"
	"github.com/cheerfulman/arbitrage-fund/pkg/httputil"
	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
	"github.com/cheerfulman/arbitrage-fund/pkg/redis"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server with the daily analysis schedule",
	Long: `Starts the HTTP API server, the daily analysis job and the
trigger worker.

Endpoints:
  GET  /health                  - Health check
  GET  /api/analyses/{date}     - Analyses of a day, joined with market data
  GET  /api/funds/{date}        - Snapshots by net asset value date
  POST /api/trigger-analysis    - Fire one pipeline run
  GET  /api/jobs                - Scheduler job statistics

Example:
  go run ./cmd/arb serve
  go run ./cmd/arb serve --port 8000`,
	RunE: runServer,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API server port (overrides PORT)")
}

func runServer(cmd *cobra.Command, args []string) error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if servePort != "" {
		cfg.Port = servePort
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing arbitrage-fund server")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Ensure schema
	if err := store.Migrate(cmd.Context(), db, log); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	// 5. Connect to Redis (optional)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	cache := redis.NewCache(redisClient, "arb")

	// 6. Create external API clients
	httpClient := httputil.New(log)
	if redisClient.Enabled() {
		// Cross-process limit on top of the client's local limiter
		httpClient.WithRateLimiter(redis.NewRateLimiter(redisClient, "arb"), redis.RateLimitConfig{
			Key:    "outbound",
			Limit:  60,
			Window: time.Minute,
		})
	}
	jisiluClient := jisilu.NewClient(cfg.Jisilu, httpClient, log)
	cozeClient := coze.NewClient(cfg.Coze, log)

	if !cozeClient.Configured() {
		log.Warn("Coze credentials missing, analysis runs will be skipped")
	}

	// 7. Create repositories
	fundRepo := store.NewFundRepository(db, log)
	analysisRepo := store.NewAnalysisRepository(db, log)

	// 8. Create pipeline and trigger worker
	pipe := pipeline.New(cfg.Analysis, jisiluClient, cozeClient, fundRepo, analysisRepo, log)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	runner := pipeline.NewRunner(pipe, log)
	runner.Start(workerCtx)

	// 9. Schedule the daily job
	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewAnalysisJob(pipe, cfg.Analysis.Schedule, log)); err != nil {
		return fmt.Errorf("schedule analysis job: %w", err)
	}
	sched.Start()

	// 10. Create handler and router
	analysisHandler := handlers.NewAnalysisHandler(fundRepo, analysisRepo, runner, sched, cache, log)
	router := api.NewRouter(analysisHandler, log)

	// 11. Start server with graceful shutdown
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("Server started successfully")
	fmt.Printf("Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	sched.Stop()
	runner.Stop()

	log.Info("Server stopped")
	return nil
}
