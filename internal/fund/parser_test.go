package fund

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

func decodePayload(t *testing.T, data string) *RawPayload {
	t.Helper()
	var p RawPayload
	require.NoError(t, json.Unmarshal([]byte(data), &p))
	return &p
}

func TestParseMalformedPayloads(t *testing.T) {
	log := logger.NewNop()

	tests := []struct {
		name    string
		payload *RawPayload
	}{
		{"nil payload", nil},
		{"empty object", decodePayload(t, `{}`)},
		{"rows not a list", decodePayload(t, `{"rows": "not-a-list"}`)},
		{"rows is an object", decodePayload(t, `{"rows": {"cell": {}}}`)},
		{"null fields", decodePayload(t, `{"page": null, "rows": null}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := Parse(tt.payload, log)
			assert.Equal(t, 0, ds.Len())
			assert.Empty(t, ds.Records())
		})
	}
}

func TestParseExtractsOnlyCellRows(t *testing.T) {
	payload := decodePayload(t, `{
		"page": 1,
		"rows": [
			{"id": "160633", "cell": {"fund_id": "160633", "fund_nm": "鹏华酒", "discount_rt": "5.1%"}},
			{"id": "orphan"},
			{"id": "501021", "cell": {"fund_id": "501021", "fund_nm": "香港中小", "price": 1.234}}
		]
	}`)

	ds := Parse(payload, logger.NewNop())

	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "160633", ds.Records()[0].FundCode)
	assert.Equal(t, "鹏华酒", ds.Records()[0].FundName)
	assert.Equal(t, "5.1%", ds.Records()[0].DiscountRate)
	// Missing fields default to empty string, numeric cells are stringified
	assert.Equal(t, "", ds.Records()[0].Price)
	assert.Equal(t, "1.234", ds.Records()[1].Price)
	assert.Equal(t, "", ds.Records()[1].NavDate)
}

func TestResolvePageInfoShapes(t *testing.T) {
	log := logger.NewNop()

	tests := []struct {
		name     string
		payload  string
		wantKind PageInfoKind
		wantPage int
		wantRecs int
	}{
		{
			name:     "detailed object",
			payload:  `{"page": {"page": 2, "total": 3, "records": 70}, "rows": []}`,
			wantKind: PageDetailed,
			wantPage: 2,
			wantRecs: 70,
		},
		{
			name:     "scalar page with top-level counts",
			payload:  `{"page": 1, "records": 25, "rows": [{"cell": {"fund_id": "a"}}]}`,
			wantKind: PageScalar,
			wantPage: 1,
			wantRecs: 25,
		},
		{
			name:     "scalar page as numeric string",
			payload:  `{"page": "4", "rows": [{"cell": {"fund_id": "a"}}]}`,
			wantKind: PageScalar,
			wantPage: 4,
			wantRecs: 1,
		},
		{
			name:     "inferred from rows",
			payload:  `{"rows": [{"cell": {"fund_id": "a"}}, {"cell": {"fund_id": "b"}}]}`,
			wantKind: PageInferred,
			wantPage: 1,
			wantRecs: 2,
		},
		{
			name:     "unrecognized page shape",
			payload:  `{"page": [1, 2], "rows": [{"cell": {"fund_id": "a"}}]}`,
			wantKind: PageUnknown,
		},
		{
			name:     "nothing at all",
			payload:  `{}`,
			wantKind: PageUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := Parse(decodePayload(t, tt.payload), log)
			info := ds.PageInfo()
			assert.Equal(t, tt.wantKind, info.Kind)
			if tt.wantKind == PageUnknown {
				return
			}
			assert.Equal(t, tt.wantPage, info.Page)
			assert.Equal(t, tt.wantRecs, info.Records)
		})
	}
}

func TestPageShapeNeverBlocksRecords(t *testing.T) {
	// A broken page field must not abort row extraction.
	payload := decodePayload(t, `{"page": true, "rows": [{"cell": {"fund_id": "x"}}]}`)
	ds := Parse(payload, logger.NewNop())
	assert.Equal(t, 1, ds.Len())
}

func TestSortByDescendingStable(t *testing.T) {
	payload := decodePayload(t, `{"rows": [
		{"cell": {"fund_id": "f1", "discount_rt": "3.0%"}},
		{"cell": {"fund_id": "f2", "discount_rt": "5.0%"}},
		{"cell": {"fund_id": "f3", "discount_rt": "bad"}},
		{"cell": {"fund_id": "f4", "discount_rt": "5.0%"}}
	]}`)

	ds := Parse(payload, logger.NewNop())
	ds.SortBy(SortFieldDiscount)

	var order []string
	for _, r := range ds.Records() {
		order = append(order, r.FundCode)
	}

	// Ties keep upstream relative order; unparsable counts as 0.0
	assert.Equal(t, []string{"f2", "f4", "f1", "f3"}, order)
}

func TestSortByInvalidFieldIsNoOp(t *testing.T) {
	payload := decodePayload(t, `{"rows": [
		{"cell": {"fund_id": "f1", "discount_rt": "1%"}},
		{"cell": {"fund_id": "f2", "discount_rt": "9%"}}
	]}`)

	ds := Parse(payload, logger.NewNop())
	ds.SortBy("volume")

	assert.Equal(t, "f1", ds.Records()[0].FundCode)
	assert.Equal(t, "f2", ds.Records()[1].FundCode)
}

func TestSortByPremiumField(t *testing.T) {
	payload := decodePayload(t, `{"rows": [
		{"cell": {"fund_id": "f1", "premium_rt": "-0.5%"}},
		{"cell": {"fund_id": "f2", "premium_rt": "2.5%"}}
	]}`)

	ds := Parse(payload, logger.NewNop())
	ds.SortBy(SortFieldPremium)

	assert.Equal(t, "f2", ds.Records()[0].FundCode)
}

func TestMerge(t *testing.T) {
	lof := decodePayload(t, `{"rows": [{"cell": {"fund_id": "a"}}]}`)
	qdii := decodePayload(t, `{"rows": [{"cell": {"fund_id": "b"}}, {"cell": {"fund_id": "c"}}]}`)

	t.Run("both sides", func(t *testing.T) {
		merged := Merge(lof, qdii)
		ds := Parse(merged, logger.NewNop())
		require.Equal(t, 3, ds.Len())
		assert.Equal(t, "a", ds.Records()[0].FundCode)
		assert.Equal(t, "c", ds.Records()[2].FundCode)
		assert.Equal(t, 3, ds.PageInfo().Records)
	})

	t.Run("nil left", func(t *testing.T) {
		assert.Equal(t, qdii, Merge(nil, qdii))
	})

	t.Run("nil right", func(t *testing.T) {
		assert.Equal(t, lof, Merge(lof, nil))
	})

	t.Run("both nil", func(t *testing.T) {
		assert.Nil(t, Merge(nil, nil))
	})
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"4.5%", 4.5, true},
		{"-1.2%", -1.2, true},
		{"3.0", 3.0, true},
		{" 2.5% ", 2.5, true},
		{"", 0, false},
		{"bad", 0, false},
		{"%", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseRate(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}
