package fund

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

func TestQualified(t *testing.T) {
	s := NewScreener(DefaultCriteria(), logger.NewNop())

	tests := []struct {
		name   string
		record Record
		want   bool
	}{
		{
			name:   "all conditions met",
			record: Record{ApplyStatus: "开放申购", RedeemStatus: "开放赎回", DiscountRate: "4.5%"},
			want:   true,
		},
		{
			name:   "boundary rate is strict",
			record: Record{ApplyStatus: "开放申购", RedeemStatus: "开放赎回", DiscountRate: "4.0%"},
			want:   false,
		},
		{
			name:   "redemption closed",
			record: Record{ApplyStatus: "开放申购", RedeemStatus: "暂停赎回", DiscountRate: "10%"},
			want:   false,
		},
		{
			name:   "subscription suspended",
			record: Record{ApplyStatus: "暂停申购", RedeemStatus: "开放赎回", DiscountRate: "10%"},
			want:   false,
		},
		{
			name:   "empty subscription status still passes",
			record: Record{ApplyStatus: "", RedeemStatus: "开放赎回", DiscountRate: "10%"},
			want:   true,
		},
		{
			name:   "limited subscription still passes",
			record: Record{ApplyStatus: "限大额", RedeemStatus: "开放赎回", DiscountRate: "5.5%"},
			want:   true,
		},
		{
			name:   "empty redemption status disqualifies",
			record: Record{ApplyStatus: "开放申购", RedeemStatus: "", DiscountRate: "10%"},
			want:   false,
		},
		{
			name:   "unparsable rate disqualifies",
			record: Record{ApplyStatus: "开放申购", RedeemStatus: "开放赎回", DiscountRate: "n/a"},
			want:   false,
		},
		{
			name:   "empty rate disqualifies",
			record: Record{ApplyStatus: "开放申购", RedeemStatus: "开放赎回", DiscountRate: ""},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Qualified(tt.record))
		})
	}
}

func TestShortlistKeepsOrder(t *testing.T) {
	payload := decodePayload(t, `{"rows": [
		{"cell": {"fund_id": "f1", "apply_status": "开放申购", "redeem_status": "开放赎回", "discount_rt": "4.7%"}},
		{"cell": {"fund_id": "f2", "apply_status": "开放申购", "redeem_status": "暂停赎回", "discount_rt": "9.9%"}},
		{"cell": {"fund_id": "f3", "apply_status": "开放申购", "redeem_status": "开放赎回", "discount_rt": "6.2%"}}
	]}`)

	ds := Parse(payload, logger.NewNop())
	s := NewScreener(DefaultCriteria(), logger.NewNop())

	ingest := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	shortlist := s.Shortlist(ds, ingest)

	require.Len(t, shortlist, 2)
	assert.Equal(t, "f1", shortlist[0].FundCode)
	assert.Equal(t, "f3", shortlist[1].FundCode)
	assert.Equal(t, ingest, shortlist[0].IngestDate)
}

func TestSnapshotsMaterializeAllRecords(t *testing.T) {
	payload := decodePayload(t, `{"rows": [
		{"cell": {"fund_id": "f1", "nav_dt": "2026-08-27"}},
		{"cell": {"fund_id": "f2"}}
	]}`)

	ds := Parse(payload, logger.NewNop())
	ingest := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	snaps := ds.Snapshots(ingest)

	require.Len(t, snaps, 2)
	assert.Equal(t, "2026-08-27", snaps[0].NavDate)
	assert.Equal(t, "", snaps[1].NavDate)
	assert.Equal(t, ingest, snaps[1].IngestDate)
}

func TestCustomCriteria(t *testing.T) {
	s := NewScreener(Criteria{
		SuspendedApplyStatus: "suspended",
		OpenRedeemStatus:     "open",
		MinPremiumRate:       2.0,
	}, logger.NewNop())

	assert.True(t, s.Qualified(Record{ApplyStatus: "normal", RedeemStatus: "open", DiscountRate: "2.1%"}))
	assert.False(t, s.Qualified(Record{ApplyStatus: "normal", RedeemStatus: "open", DiscountRate: "2.0%"}))
	assert.False(t, s.Qualified(Record{ApplyStatus: "suspended", RedeemStatus: "open", DiscountRate: "5%"}))
}
