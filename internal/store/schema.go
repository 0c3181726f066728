package store

import (
	"context"
	"fmt"

	"github.com/cheerfulman/arbitrage-fund/pkg/database"
	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

// Migrate creates the tables the service owns. Statements are idempotent
// so this runs on every startup before the server accepts traffic.
func Migrate(ctx context.Context, db *database.DB, log *logger.Logger) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS fund_snapshots (
			id BIGSERIAL PRIMARY KEY,
			fund_code TEXT NOT NULL,
			fund_name TEXT NOT NULL,
			price TEXT NOT NULL DEFAULT '',
			pre_close TEXT NOT NULL DEFAULT '',
			price_date TEXT NOT NULL DEFAULT '',
			increase_rate TEXT NOT NULL DEFAULT '',
			volume TEXT NOT NULL DEFAULT '',
			amount TEXT NOT NULL DEFAULT '',
			amount_incr TEXT NOT NULL DEFAULT '',
			fund_nav TEXT NOT NULL DEFAULT '',
			estimate_value TEXT NOT NULL DEFAULT '',
			discount_rate TEXT NOT NULL DEFAULT '',
			premium_rate TEXT NOT NULL DEFAULT '',
			index_code TEXT NOT NULL DEFAULT '',
			index_name TEXT NOT NULL DEFAULT '',
			index_increase_rate TEXT NOT NULL DEFAULT '',
			apply_fee TEXT NOT NULL DEFAULT '',
			apply_status TEXT NOT NULL DEFAULT '',
			redeem_fee TEXT NOT NULL DEFAULT '',
			redeem_status TEXT NOT NULL DEFAULT '',
			turnover_rate TEXT NOT NULL DEFAULT '',
			nav_date TEXT NOT NULL DEFAULT '',
			ingest_date DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT fund_snapshots_natural_key UNIQUE (fund_code, fund_name, nav_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fund_snapshots_ingest_date
			ON fund_snapshots (ingest_date)`,
		`CREATE INDEX IF NOT EXISTS idx_fund_snapshots_nav_date
			ON fund_snapshots (nav_date)`,
		`CREATE TABLE IF NOT EXISTS ai_analyses (
			id BIGSERIAL PRIMARY KEY,
			fund_code TEXT NOT NULL,
			fund_name TEXT NOT NULL,
			analysis_content TEXT NOT NULL DEFAULT '',
			nav_date TEXT NOT NULL DEFAULT '',
			analysis_date DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT ai_analyses_daily_key UNIQUE (fund_code, analysis_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ai_analyses_analysis_date
			ON ai_analyses (analysis_date)`,
	}

	for _, stmt := range statements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	log.Info("Database schema up to date")
	return nil
}
