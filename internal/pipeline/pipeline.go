package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cheerfulman/arbitrage-fund/internal/external/coze"
	"github.com/cheerfulman/arbitrage-fund/internal/fund"
	"github.com/cheerfulman/arbitrage-fund/internal/store"
	"github.com/cheerfulman/arbitrage-fund/pkg/config"
	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

// Fetcher supplies the raw fund listing.
type Fetcher interface {
	FetchAll(ctx context.Context) (*fund.RawPayload, error)
}

// Analyzer turns a prompt into an analysis answer.
type Analyzer interface {
	Configured() bool
	Chat(ctx context.Context, message string) (*coze.ChatResult, error)
}

// FundStore persists fund snapshots.
type FundStore interface {
	UpsertBatch(ctx context.Context, snapshots []fund.Snapshot) (int, error)
}

// AnalysisStore persists analysis results.
type AnalysisStore interface {
	Upsert(ctx context.Context, a *store.Analysis) error
}

// Result summarizes one pipeline run.
type Result struct {
	FundsFetched   int
	FundsQualified int
	AnalysesSaved  int
}

// Pipeline is the daily arbitrage run: fetch the listings, persist all
// snapshots, screen for candidates, ask the bot, persist its analyses.
// Runs are idempotent; firing twice for the same day overwrites rather
// than duplicates.
type Pipeline struct {
	fetcher   Fetcher
	analyzer  Analyzer
	funds     FundStore
	analyses  AnalysisStore
	screener  *fund.Screener
	sortField string
	logger    *logger.Logger
	now       func() time.Time
}

// New creates a pipeline.
func New(cfg config.AnalysisConfig, fetcher Fetcher, analyzer Analyzer,
	funds FundStore, analyses AnalysisStore, log *logger.Logger) *Pipeline {

	criteria := fund.Criteria{
		SuspendedApplyStatus: cfg.SuspendedApplyStatus,
		OpenRedeemStatus:     cfg.OpenRedeemStatus,
		MinPremiumRate:       cfg.MinPremiumRate,
	}

	return &Pipeline{
		fetcher:   fetcher,
		analyzer:  analyzer,
		funds:     funds,
		analyses:  analyses,
		screener:  fund.NewScreener(criteria, log),
		sortField: cfg.SortField,
		logger:    log,
		now:       time.Now,
	}
}

// Run executes one full pipeline pass. Snapshot persistence and analysis
// persistence are independent stages: an analysis failure never unwinds
// snapshots already committed.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	today := p.today()
	result := &Result{}

	payload, err := p.fetcher.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch fund listings: %w", err)
	}

	ds := fund.Parse(payload, p.logger)
	ds.SortBy(p.sortField)
	result.FundsFetched = ds.Len()

	if _, err := p.funds.UpsertBatch(ctx, ds.Snapshots(today)); err != nil {
		return nil, fmt.Errorf("save fund snapshots: %w", err)
	}

	shortlist := p.screener.Shortlist(ds, today)
	result.FundsQualified = len(shortlist)

	if len(shortlist) == 0 {
		p.logger.Info("No funds qualified for analysis today")
		return result, nil
	}

	if !p.analyzer.Configured() {
		return result, fmt.Errorf("analysis skipped: %w", coze.ErrMissingCredentials)
	}

	chat, err := p.analyzer.Chat(ctx, fund.BuildPrompt(shortlist))
	if err != nil {
		return result, fmt.Errorf("analysis chat: %w", err)
	}

	items, err := parseAnalysisItems(chat.Content)
	if err != nil {
		// Snapshots stay committed; only the analysis batch is lost.
		return result, fmt.Errorf("parse analysis answer: %w", err)
	}

	for _, item := range items {
		if item.FundCode == "" || item.FundName == "" || item.AnalysisContent == "" {
			p.logger.WithField("fund_code", item.FundCode).Warn("Skipping incomplete analysis item")
			continue
		}

		a := &store.Analysis{
			FundCode:        item.FundCode,
			FundName:        item.FundName,
			AnalysisContent: item.AnalysisContent,
			NavDate:         item.NavDate,
			AnalysisDate:    today,
		}
		if err := p.analyses.Upsert(ctx, a); err != nil {
			return result, fmt.Errorf("save analysis: %w", err)
		}
		result.AnalysesSaved++
	}

	p.logger.WithFields(map[string]interface{}{
		"funds_fetched":   result.FundsFetched,
		"funds_qualified": result.FundsQualified,
		"analyses_saved":  result.AnalysesSaved,
		"token_count":     chat.TokenCount,
	}).Info("Pipeline run completed")

	return result, nil
}

// today returns the current date truncated to midnight UTC.
func (p *Pipeline) today() time.Time {
	t := p.now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// analysisItem mirrors one element of the bot's JSON array answer.
type analysisItem struct {
	FundCode        string `json:"fund_code"`
	FundName        string `json:"fund_name"`
	AnalysisContent string `json:"analysis_content"`
	NavDate         string `json:"nav_dt"`
}

// parseAnalysisItems extracts the JSON array from a bot answer. Bots
// habitually wrap JSON in markdown code fences despite instructions, so
// fences are stripped before decoding.
func parseAnalysisItems(content string) ([]analysisItem, error) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if s == "" {
		return nil, fmt.Errorf("empty answer")
	}

	var items []analysisItem
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("answer is not a JSON array: %w", err)
	}

	return items, nil
}
