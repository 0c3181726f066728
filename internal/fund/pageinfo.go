package fund

import (
	"encoding/json"
	"strconv"

	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

// PageInfoKind tags the shape the upstream pagination metadata arrived
// in. It is resolved exactly once, at parse time.
type PageInfoKind int

const (
	// PageUnknown means the metadata was missing or unrecognizable.
	PageUnknown PageInfoKind = iota
	// PageDetailed means the page field was a full object.
	PageDetailed
	// PageScalar means the page field was a bare number.
	PageScalar
	// PageInferred means there was no page field and the counts were
	// derived from the row list.
	PageInferred
)

// PageInfo is the resolved pagination metadata.
type PageInfo struct {
	Kind    PageInfoKind
	Page    int
	Total   int
	Records int
}

// resolvePageInfo normalizes the three recognized metadata shapes.
// An unrecognized shape is logged and reported as Unknown; it never
// aborts record extraction.
func resolvePageInfo(payload *RawPayload, rowCount int, log *logger.Logger) PageInfo {
	if len(payload.Page) > 0 && string(payload.Page) != "null" {
		// Full object: {"page": 1, "total": 3, "records": 70}
		var detailed struct {
			Page    json.RawMessage `json:"page"`
			Total   json.RawMessage `json:"total"`
			Records json.RawMessage `json:"records"`
		}
		if err := json.Unmarshal(payload.Page, &detailed); err == nil {
			return PageInfo{
				Kind:    PageDetailed,
				Page:    rawInt(detailed.Page, 1),
				Total:   rawInt(detailed.Total, 1),
				Records: rawInt(detailed.Records, rowCount),
			}
		}

		// Bare number (or numeric string): the counts live at the top level
		if page, ok := rawIntStrict(payload.Page); ok {
			return PageInfo{
				Kind:    PageScalar,
				Page:    page,
				Total:   rawInt(payload.Total, 1),
				Records: rawInt(payload.Records, rowCount),
			}
		}

		log.WithField("page", string(payload.Page)).Warn("Unrecognized page metadata shape")
		return PageInfo{Kind: PageUnknown}
	}

	if len(payload.Rows) > 0 {
		return PageInfo{
			Kind:    PageInferred,
			Page:    1,
			Total:   1,
			Records: rowCount,
		}
	}

	log.Warn("Payload carries no page metadata")
	return PageInfo{Kind: PageUnknown}
}

// rawInt decodes a raw JSON value as an int, accepting numbers and
// numeric strings, falling back to def.
func rawInt(raw json.RawMessage, def int) int {
	if v, ok := rawIntStrict(raw); ok {
		return v
	}
	return def
}

func rawIntStrict(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
	}

	return 0, false
}
