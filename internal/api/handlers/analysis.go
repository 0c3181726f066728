package handlers

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/cheerfulman/arbitrage-fund/internal/fund"
	"github.com/cheerfulman/arbitrage-fund/internal/scheduler"
	"github.com/cheerfulman/arbitrage-fund/internal/store"
	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
	"github.com/cheerfulman/arbitrage-fund/pkg/redis"
)

const dateLayout = "2006-01-02"

// FundReader reads persisted fund snapshots.
type FundReader interface {
	GetByDate(ctx context.Context, date time.Time) (map[string]fund.Snapshot, error)
	GetByNavDate(ctx context.Context, navDate string) ([]fund.Snapshot, error)
}

// AnalysisReader reads persisted analyses.
type AnalysisReader interface {
	GetByDate(ctx context.Context, date time.Time) ([]store.Analysis, error)
}

// PipelineTrigger enqueues a pipeline run.
type PipelineTrigger interface {
	Trigger() bool
}

// JobStatsProvider exposes scheduler job statistics.
type JobStatsProvider interface {
	GetJobStats() map[string]scheduler.JobStats
}

// AnalysisHandler handles the fund analysis API endpoints.
type AnalysisHandler struct {
	funds    FundReader
	analyses AnalysisReader
	trigger  PipelineTrigger
	jobs     JobStatsProvider
	cache    *redis.Cache
	logger   *logger.Logger
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(
	funds FundReader,
	analyses AnalysisReader,
	trigger PipelineTrigger,
	jobs JobStatsProvider,
	cache *redis.Cache,
	log *logger.Logger,
) *AnalysisHandler {
	return &AnalysisHandler{
		funds:    funds,
		analyses: analyses,
		trigger:  trigger,
		jobs:     jobs,
		cache:    cache,
		logger:   log,
	}
}

// AnalysisItem is one fund's analysis joined with its market snapshot.
type AnalysisItem struct {
	Data          string `json:"data"`
	Title         string `json:"title"`
	FundName      string `json:"fund_name"`
	FundCode      string `json:"fund_code"`
	NavDate       string `json:"nav_dt"`
	EstimateValue string `json:"estimate_value"`
	Price         string `json:"price"`
	ApplyStatus   string `json:"apply_status"`
	DiscountRate  string `json:"discount_rt"`
}

// AnalysesResponse is the day's analyses envelope.
type AnalysesResponse struct {
	Status string         `json:"status"`
	Date   string         `json:"date"`
	Count  int            `json:"count"`
	Data   []AnalysisItem `json:"data"`
}

// GetAnalyses returns the analyses of one day, joined with the market
// snapshots ingested that day.
// GET /api/analyses/{date}
func (h *AnalysisHandler) GetAnalyses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dateStr := mux.Vars(r)["date"]
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return
	}

	if h.cache != nil {
		var cached AnalysesResponse
		if hit, err := h.cache.Get(ctx, redis.AnalysesKey(dateStr), &cached); err == nil && hit {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	analyses, err := h.analyses.GetByDate(ctx, date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get analyses")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve analyses")
		return
	}

	snapshots, err := h.funds.GetByDate(ctx, date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get fund snapshots")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve fund snapshots")
		return
	}

	items := make([]AnalysisItem, 0, len(analyses))
	for _, a := range analyses {
		item := AnalysisItem{
			Data:     a.AnalysisContent,
			Title:    a.FundName + "(" + a.FundCode + ")",
			FundName: a.FundName,
			FundCode: a.FundCode,
			NavDate:  a.NavDate,
		}
		if s, ok := snapshots[a.FundCode]; ok {
			item.EstimateValue = s.EstimateValue
			item.Price = s.Price
			item.ApplyStatus = s.ApplyStatus
			item.DiscountRate = s.DiscountRate
		}
		items = append(items, item)
	}

	// Highest discount first; funds without a parsable rate sink to the
	// bottom.
	sort.SliceStable(items, func(i, j int) bool {
		return discountValue(items[i].DiscountRate) > discountValue(items[j].DiscountRate)
	})

	response := AnalysesResponse{
		Status: "success",
		Date:   dateStr,
		Count:  len(items),
		Data:   items,
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, redis.AnalysesKey(dateStr), response, redis.TTLShort); err != nil {
			h.logger.WithError(err).Warn("Failed to cache analyses")
		}
	}

	respondJSON(w, http.StatusOK, response)
}

// TriggerResponse acknowledges a trigger request.
type TriggerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TriggerAnalysis enqueues a pipeline run and returns immediately. The
// response never reflects the run's outcome, only its acceptance.
// POST /api/trigger-analysis
func (h *AnalysisHandler) TriggerAnalysis(w http.ResponseWriter, r *http.Request) {
	message := "Analysis started"
	if !h.trigger.Trigger() {
		message = "Analysis already pending"
	}

	h.logger.Info("Analysis trigger requested")

	respondJSON(w, http.StatusOK, TriggerResponse{
		Status:  "success",
		Message: message,
	})
}

// FundItem is one persisted fund snapshot in API form.
type FundItem struct {
	FundCode      string `json:"fund_code"`
	FundName      string `json:"fund_name"`
	Price         string `json:"price"`
	IncreaseRate  string `json:"increase_rt"`
	FundNav       string `json:"fund_nav"`
	EstimateValue string `json:"estimate_value"`
	DiscountRate  string `json:"discount_rt"`
	PremiumRate   string `json:"premium_rt"`
	IndexName     string `json:"index_nm"`
	ApplyStatus   string `json:"apply_status"`
	RedeemStatus  string `json:"redeem_status"`
	NavDate       string `json:"nav_dt"`
}

// GetFunds returns the snapshots whose net asset value carries the given
// date.
// GET /api/funds/{date}
func (h *AnalysisHandler) GetFunds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dateStr := mux.Vars(r)["date"]
	if _, err := time.Parse(dateLayout, dateStr); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (expected YYYY-MM-DD)")
		return
	}

	snapshots, err := h.funds.GetByNavDate(ctx, dateStr)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get fund snapshots")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve fund snapshots")
		return
	}

	items := make([]FundItem, 0, len(snapshots))
	for _, s := range snapshots {
		items = append(items, FundItem{
			FundCode:      s.FundCode,
			FundName:      s.FundName,
			Price:         s.Price,
			IncreaseRate:  s.IncreaseRate,
			FundNav:       s.FundNav,
			EstimateValue: s.EstimateValue,
			DiscountRate:  s.DiscountRate,
			PremiumRate:   s.PremiumRate,
			IndexName:     s.IndexName,
			ApplyStatus:   s.ApplyStatus,
			RedeemStatus:  s.RedeemStatus,
			NavDate:       s.NavDate,
		})
	}

	respondJSON(w, http.StatusOK, items)
}

// GetJobs returns scheduler job statistics.
// GET /api/jobs
func (h *AnalysisHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.jobs.GetJobStats())
}

// discountValue parses a percent string for ordering. Unparsable values
// rank below every real rate.
func discountValue(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return math.Inf(-1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.Inf(-1)
	}
	return v
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
