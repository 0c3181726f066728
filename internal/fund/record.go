package fund

import (
	"strconv"
	"strings"
	"time"
)

// Sort fields recognized by Dataset.SortBy.
const (
	SortFieldDiscount = "discount_rt"
	SortFieldPremium  = "premium_rt"
)

// Record is one fund row as received from upstream, every field held as
// a string exactly as published (percent signs and all). Fields missing
// from a row are empty strings, never absent; downstream code never does
// a map lookup.
type Record struct {
	FundCode          string // fund_id
	FundName          string // fund_nm
	Price             string // current price
	PreClose          string // previous close
	PriceDate         string // price_dt
	IncreaseRate      string // increase_rt
	Volume            string // daily volume (10k units)
	Amount            string // in-market shares (10k units)
	AmountIncr        string // share count delta (10k units)
	FundNav           string // official net asset value
	EstimateValue     string // real-time estimated value
	DiscountRate      string // discount/premium rate, signed percent
	PremiumRate       string // premium_rt, present on some sources
	IndexCode         string // tracked index id
	IndexName         string // tracked index name
	IndexIncreaseRate string
	ApplyFee          string
	ApplyStatus       string // subscription status
	RedeemFee         string
	RedeemStatus      string // redemption status
	TurnoverRate      string
	NavDate           string // nav_dt, YYYY-MM-DD
}

// newRecord builds a Record from a decoded cell mapping, defaulting every
// absent field to the empty string.
func newRecord(cell map[string]interface{}) Record {
	get := func(key string) string {
		return cellString(cell[key])
	}

	return Record{
		FundCode:          get("fund_id"),
		FundName:          get("fund_nm"),
		Price:             get("price"),
		PreClose:          get("pre_close"),
		PriceDate:         get("price_dt"),
		IncreaseRate:      get("increase_rt"),
		Volume:            get("volume"),
		Amount:            get("amount"),
		AmountIncr:        get("amount_incr"),
		FundNav:           get("fund_nav"),
		EstimateValue:     get("estimate_value"),
		DiscountRate:      get("discount_rt"),
		PremiumRate:       get("premium_rt"),
		IndexCode:         get("index_id"),
		IndexName:         get("index_nm"),
		IndexIncreaseRate: get("index_increase_rt"),
		ApplyFee:          get("apply_fee"),
		ApplyStatus:       get("apply_status"),
		RedeemFee:         get("redeem_fee"),
		RedeemStatus:      get("redeem_status"),
		TurnoverRate:      get("turnover_rt"),
		NavDate:           get("nav_dt"),
	}
}

// cellString renders an upstream cell value as a string. The sources mix
// strings and numbers for the same field across funds.
func cellString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sortValue returns the raw value backing a sort field and whether the
// field is recognized.
func (r Record) sortValue(field string) (string, bool) {
	switch field {
	case SortFieldDiscount:
		return r.DiscountRate, true
	case SortFieldPremium:
		return r.PremiumRate, true
	default:
		return "", false
	}
}

// parseRate strips one trailing percent sign and parses the remainder as
// a float. The ok result is false when the value does not parse.
func parseRate(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Snapshot is a fund's market state stamped with the ingestion date. It
// is the unit the persistence layer owns and the prompt renders.
type Snapshot struct {
	Record
	IngestDate time.Time
}
