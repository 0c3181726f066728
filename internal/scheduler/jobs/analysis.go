package jobs

import (
	"context"

	"github.com/cheerfulman/arbitrage-fund/internal/pipeline"
	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

// AnalysisJob runs the daily fund analysis pipeline on schedule.
type AnalysisJob struct {
	pipeline *pipeline.Pipeline
	schedule string
	logger   *logger.Logger
}

// NewAnalysisJob creates the daily analysis job.
func NewAnalysisJob(p *pipeline.Pipeline, schedule string, log *logger.Logger) *AnalysisJob {
	return &AnalysisJob{
		pipeline: p,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name.
func (j *AnalysisJob) Name() string {
	return "daily_fund_analysis"
}

// Schedule returns the cron schedule expression.
func (j *AnalysisJob) Schedule() string {
	return j.schedule
}

// Run executes one pipeline pass. A failure here surfaces in the job
// history; the next attempt is the next scheduled fire.
func (j *AnalysisJob) Run(ctx context.Context) error {
	result, err := j.pipeline.Run(ctx)
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"funds_fetched":   result.FundsFetched,
		"funds_qualified": result.FundsQualified,
		"analyses_saved":  result.AnalysesSaved,
	}).Info("Scheduled analysis finished")

	return nil
}
