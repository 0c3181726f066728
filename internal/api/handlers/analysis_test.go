package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheerfulman/arbitrage-fund/internal/fund"
	"github.com/cheerfulman/arbitrage-fund/internal/scheduler"
	"github.com/cheerfulman/arbitrage-fund/internal/store"
	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

type fakeFundReader struct {
	byDate    map[string]fund.Snapshot
	byNavDate []fund.Snapshot
	err       error
}

func (f *fakeFundReader) GetByDate(ctx context.Context, date time.Time) (map[string]fund.Snapshot, error) {
	return f.byDate, f.err
}

func (f *fakeFundReader) GetByNavDate(ctx context.Context, navDate string) ([]fund.Snapshot, error) {
	return f.byNavDate, f.err
}

type fakeAnalysisReader struct {
	analyses []store.Analysis
	err      error
}

func (f *fakeAnalysisReader) GetByDate(ctx context.Context, date time.Time) ([]store.Analysis, error) {
	return f.analyses, f.err
}

type fakeTrigger struct {
	accepted bool
	calls    int
}

func (f *fakeTrigger) Trigger() bool {
	f.calls++
	return f.accepted
}

type fakeJobStats struct {
	stats map[string]scheduler.JobStats
}

func (f *fakeJobStats) GetJobStats() map[string]scheduler.JobStats {
	return f.stats
}

func newHandler(funds FundReader, analyses AnalysisReader, trigger PipelineTrigger, jobs JobStatsProvider) *AnalysisHandler {
	return NewAnalysisHandler(funds, analyses, trigger, jobs, nil, logger.NewNop())
}

func getWithDate(t *testing.T, handlerFn http.HandlerFunc, date string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/x/"+date, nil)
	req = mux.SetURLVars(req, map[string]string{"date": date})
	rec := httptest.NewRecorder()
	handlerFn(rec, req)
	return rec
}

func TestGetAnalysesInvalidDate(t *testing.T) {
	h := newHandler(&fakeFundReader{}, &fakeAnalysisReader{}, &fakeTrigger{}, &fakeJobStats{})

	rec := getWithDate(t, h.GetAnalyses, "28-08-2026")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAnalysesJoinsAndSorts(t *testing.T) {
	funds := &fakeFundReader{byDate: map[string]fund.Snapshot{
		"160633": {Record: fund.Record{FundCode: "160633", Price: "1.05", EstimateValue: "1.11", ApplyStatus: "开放申购", DiscountRate: "5.1%"}},
		"501021": {Record: fund.Record{FundCode: "501021", Price: "0.98", EstimateValue: "1.06", ApplyStatus: "限大额", DiscountRate: "7.3%"}},
	}}
	analyses := &fakeAnalysisReader{analyses: []store.Analysis{
		{FundCode: "160633", FundName: "鹏华酒", AnalysisContent: "关注流动性", NavDate: "2026-08-27"},
		{FundCode: "501021", FundName: "香港中小", AnalysisContent: "折价显著", NavDate: "2026-08-27"},
		{FundCode: "999999", FundName: "无行情", AnalysisContent: "缺快照", NavDate: "2026-08-27"},
	}}

	h := newHandler(funds, analyses, &fakeTrigger{}, &fakeJobStats{})

	rec := getWithDate(t, h.GetAnalyses, "2026-08-28")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalysesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "2026-08-28", resp.Date)
	assert.Equal(t, 3, resp.Count)

	items := resp.Data
	require.Len(t, items, 3)

	// Sorted by discount descending; the fund without a snapshot (no
	// parsable rate) comes last.
	assert.Equal(t, "501021", items[0].FundCode)
	assert.Equal(t, "160633", items[1].FundCode)
	assert.Equal(t, "999999", items[2].FundCode)

	assert.Equal(t, "香港中小(501021)", items[0].Title)
	assert.Equal(t, "折价显著", items[0].Data)
	assert.Equal(t, "0.98", items[0].Price)
	assert.Equal(t, "限大额", items[0].ApplyStatus)
	assert.Equal(t, "", items[2].Price)
}

func TestGetAnalysesStoreError(t *testing.T) {
	analyses := &fakeAnalysisReader{err: fmt.Errorf("connection refused")}
	h := newHandler(&fakeFundReader{}, analyses, &fakeTrigger{}, &fakeJobStats{})

	rec := getWithDate(t, h.GetAnalyses, "2026-08-28")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetAnalysesEmptyDayIsEmptyEnvelope(t *testing.T) {
	h := newHandler(&fakeFundReader{}, &fakeAnalysisReader{}, &fakeTrigger{}, &fakeJobStats{})

	rec := getWithDate(t, h.GetAnalyses, "2026-08-28")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "success", "date": "2026-08-28", "count": 0, "data": []}`, rec.Body.String())
}

func TestTriggerAnalysis(t *testing.T) {
	tests := []struct {
		name        string
		accepted    bool
		wantMessage string
	}{
		{"accepted", true, "Analysis started"},
		{"already pending", false, "Analysis already pending"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := &fakeTrigger{accepted: tt.accepted}
			h := newHandler(&fakeFundReader{}, &fakeAnalysisReader{}, trigger, &fakeJobStats{})

			req := httptest.NewRequest(http.MethodPost, "/api/trigger-analysis", nil)
			rec := httptest.NewRecorder()
			h.TriggerAnalysis(rec, req)

			// The trigger endpoint acknowledges regardless of queue state
			require.Equal(t, http.StatusOK, rec.Code)

			var resp TriggerResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "success", resp.Status)
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.Equal(t, 1, trigger.calls)
		})
	}
}

func TestGetFunds(t *testing.T) {
	funds := &fakeFundReader{byNavDate: []fund.Snapshot{
		{Record: fund.Record{FundCode: "160633", FundName: "鹏华酒", DiscountRate: "5.1%", NavDate: "2026-08-27"}},
	}}
	h := newHandler(funds, &fakeAnalysisReader{}, &fakeTrigger{}, &fakeJobStats{})

	rec := getWithDate(t, h.GetFunds, "2026-08-27")
	require.Equal(t, http.StatusOK, rec.Code)

	var items []FundItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "160633", items[0].FundCode)
	assert.Equal(t, "5.1%", items[0].DiscountRate)
}

func TestGetFundsInvalidDate(t *testing.T) {
	h := newHandler(&fakeFundReader{}, &fakeAnalysisReader{}, &fakeTrigger{}, &fakeJobStats{})

	rec := getWithDate(t, h.GetFunds, "tomorrow")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobs(t *testing.T) {
	jobs := &fakeJobStats{stats: map[string]scheduler.JobStats{
		"daily_fund_analysis": {JobName: "daily_fund_analysis", Schedule: "0 0 9 * * *", TotalRuns: 3},
	}}
	h := newHandler(&fakeFundReader{}, &fakeAnalysisReader{}, &fakeTrigger{}, jobs)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	h.GetJobs(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]scheduler.JobStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats["daily_fund_analysis"].TotalRuns)
}

func TestDiscountValueOrdering(t *testing.T) {
	assert.Greater(t, discountValue("5.0%"), discountValue("4.9%"))
	assert.Greater(t, discountValue("-2%"), discountValue(""))
	assert.Greater(t, discountValue("-2%"), discountValue("n/a"))
}
