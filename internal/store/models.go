package store

import "time"

// Analysis is one AI-generated analysis of a fund, keyed by fund code
// and the date the analysis ran. Rerunning a day's pipeline overwrites
// the content rather than stacking duplicates.
type Analysis struct {
	ID              int64     `json:"id"`
	FundCode        string    `json:"fund_code"`
	FundName        string    `json:"fund_name"`
	AnalysisContent string    `json:"analysis_content"`
	NavDate         string    `json:"nav_dt"`
	AnalysisDate    time.Time `json:"analysis_date"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// applyDefaults fills the date fields the bot may omit. A zero analysis
// date becomes the processing date and an empty nav date follows the
// analysis date.
func (a *Analysis) applyDefaults(now time.Time) {
	if a.AnalysisDate.IsZero() {
		now = now.UTC()
		a.AnalysisDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if a.NavDate == "" {
		a.NavDate = a.AnalysisDate.Format("2006-01-02")
	}
}
