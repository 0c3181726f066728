package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cheerfulman/arbitrage-fund/pkg/database"
	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

// AnalysisRepository persists AI analysis results.
type AnalysisRepository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewAnalysisRepository creates an analysis repository.
func NewAnalysisRepository(db *database.DB, log *logger.Logger) *AnalysisRepository {
	return &AnalysisRepository{db: db, logger: log}
}

const upsertAnalysisQuery = `
	INSERT INTO ai_analyses (fund_code, fund_name, analysis_content, nav_date, analysis_date)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT ON CONSTRAINT ai_analyses_daily_key DO UPDATE SET
		fund_name = EXCLUDED.fund_name,
		analysis_content = EXCLUDED.analysis_content,
		nav_date = EXCLUDED.nav_date,
		updated_at = now()`

// Upsert writes one analysis. An existing row for the same fund and
// analysis date has its content replaced; created_at stays untouched.
// Missing dates default to the processing date.
func (r *AnalysisRepository) Upsert(ctx context.Context, a *Analysis) error {
	a.applyDefaults(time.Now())

	err := r.db.WithReconnect(ctx, func(ctx context.Context) error {
		_, err := r.db.Pool.Exec(ctx, upsertAnalysisQuery,
			a.FundCode, a.FundName, a.AnalysisContent, a.NavDate, a.AnalysisDate)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert analysis %s failed: %w", a.FundCode, err)
	}

	return nil
}

// GetByDate returns all analyses produced on a given date, in fund code
// order.
func (r *AnalysisRepository) GetByDate(ctx context.Context, date time.Time) ([]Analysis, error) {
	query := `
		SELECT id, fund_code, fund_name, analysis_content, nav_date,
			analysis_date, created_at, updated_at
		FROM ai_analyses
		WHERE analysis_date = $1
		ORDER BY fund_code ASC`

	var result []Analysis
	err := r.db.WithReconnect(ctx, func(ctx context.Context) error {
		rows, err := r.db.Pool.Query(ctx, query, date)
		if err != nil {
			return fmt.Errorf("query analyses failed: %w", err)
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			var a Analysis
			if err := rows.Scan(&a.ID, &a.FundCode, &a.FundName,
				&a.AnalysisContent, &a.NavDate, &a.AnalysisDate,
				&a.CreatedAt, &a.UpdatedAt); err != nil {
				return fmt.Errorf("scan analysis failed: %w", err)
			}
			result = append(result, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
