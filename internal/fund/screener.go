package fund

import (
	"time"

	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

// Criteria is the arbitrage eligibility policy. The literals and the
// threshold are configuration; the comparison semantics are not.
type Criteria struct {
	// SuspendedApplyStatus disqualifies a fund when its subscription
	// status equals it exactly. Any other status, including empty, passes.
	SuspendedApplyStatus string
	// OpenRedeemStatus must match the redemption status exactly. Any
	// other value, including empty, disqualifies.
	OpenRedeemStatus string
	// MinPremiumRate is the strict lower bound on the discount/premium
	// rate, in percent.
	MinPremiumRate float64
}

// DefaultCriteria is the policy carried over from the upstream feed's
// status vocabulary.
func DefaultCriteria() Criteria {
	return Criteria{
		SuspendedApplyStatus: "暂停申购",
		OpenRedeemStatus:     "开放赎回",
		MinPremiumRate:       4.0,
	}
}

// Screener applies the eligibility predicate to fund records.
type Screener struct {
	criteria Criteria
	logger   *logger.Logger
}

// NewScreener creates a screener with the given criteria.
func NewScreener(criteria Criteria, log *logger.Logger) *Screener {
	return &Screener{criteria: criteria, logger: log}
}

// Qualified reports whether a fund is worth sending for analysis. The
// three conditions are independent and evaluated short-circuit in order:
// subscription not suspended, redemption exactly open, discount/premium
// rate strictly above the threshold. A rate that does not parse
// disqualifies; nothing here ever errors.
func (s *Screener) Qualified(r Record) bool {
	if r.ApplyStatus == s.criteria.SuspendedApplyStatus {
		return false
	}

	if r.RedeemStatus != s.criteria.OpenRedeemStatus {
		return false
	}

	rate, ok := parseRate(r.DiscountRate)
	if !ok {
		return false
	}
	return rate > s.criteria.MinPremiumRate
}

// Shortlist materializes only the qualified records into Snapshots, in
// the dataset's current order.
func (s *Screener) Shortlist(d *Dataset, ingestDate time.Time) []Snapshot {
	var snaps []Snapshot
	for _, r := range d.records {
		if s.Qualified(r) {
			snaps = append(snaps, Snapshot{Record: r, IngestDate: ingestDate})
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"total":     len(d.records),
		"qualified": len(snaps),
	}).Info("Screened arbitrage candidates")

	return snaps
}
