package fund

import (
	"encoding/json"
	"strconv"
)

// RawPayload is the unified fund-listing payload shape returned by the
// upstream sources. Page metadata fields are kept raw because the
// upstream is not consistent about their types; they are resolved once
// during Parse.
type RawPayload struct {
	Page    json.RawMessage `json:"page"`
	Total   json.RawMessage `json:"total"`
	Records json.RawMessage `json:"records"`
	Rows    json.RawMessage `json:"rows"`
}

// rowList decodes the rows field. Anything that is not a JSON array
// yields nil; the caller treats that as an empty listing.
func (p *RawPayload) rowList() []json.RawMessage {
	if p == nil || len(p.Rows) == 0 {
		return nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(p.Rows, &rows); err != nil {
		return nil
	}
	return rows
}

// Merge combines two payloads into one by concatenating their rows.
// Either side may be nil, in which case the other is returned unchanged.
// No deduplication happens here; that is deferred to the persistence
// upsert keyed on the fund natural key.
func Merge(a, b *RawPayload) *RawPayload {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}

	rows := append(a.rowList(), b.rowList()...)
	data, err := json.Marshal(rows)
	if err != nil {
		data = json.RawMessage("[]")
	}

	return &RawPayload{
		Page:    json.RawMessage("1"),
		Total:   json.RawMessage("1"),
		Records: json.RawMessage(strconv.Itoa(len(rows))),
		Rows:    data,
	}
}
