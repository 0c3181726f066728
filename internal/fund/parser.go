package fund

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/cheerfulman/arbitrage-fund/pkg/logger"
)

// Dataset is the parsed, ordered fund listing for one fetch cycle. Order
// is upstream order until SortBy is applied; downstream display depends
// on it being deterministic.
type Dataset struct {
	records  []Record
	pageInfo PageInfo
	logger   *logger.Logger
}

// Parse extracts fund records from a raw payload. A nil or malformed
// payload yields an empty dataset; malformed input is never an error
// here. Only entries carrying a nested cell contribute a record.
func Parse(payload *RawPayload, log *logger.Logger) *Dataset {
	ds := &Dataset{logger: log, pageInfo: PageInfo{Kind: PageUnknown}}
	if payload == nil {
		return ds
	}

	rows := payload.rowList()
	ds.pageInfo = resolvePageInfo(payload, len(rows), log)

	for _, raw := range rows {
		var row struct {
			Cell map[string]interface{} `json:"cell"`
		}
		if err := json.Unmarshal(raw, &row); err != nil || row.Cell == nil {
			continue
		}
		ds.records = append(ds.records, newRecord(row.Cell))
	}

	return ds
}

// Len returns the number of parsed records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Records returns the parsed records in their current order.
func (d *Dataset) Records() []Record {
	return d.records
}

// PageInfo returns the resolved pagination metadata.
func (d *Dataset) PageInfo() PageInfo {
	return d.pageInfo
}

// SortBy reorders the dataset by a numeric field, descending. Sorting is
// best-effort decoration: an unrecognized field logs a warning and leaves
// the order untouched, and values that do not parse count as 0.0. The
// sort is stable so equal values keep their upstream relative order.
func (d *Dataset) SortBy(field string) {
	if _, ok := (Record{}).sortValue(field); !ok {
		d.logger.WithField("field", field).Warn("Invalid sort field, keeping upstream order")
		return
	}

	key := func(r Record) float64 {
		raw, _ := r.sortValue(field)
		v, ok := parseRate(raw)
		if !ok {
			return 0.0
		}
		return v
	}

	sort.SliceStable(d.records, func(i, j int) bool {
		return key(d.records[i]) > key(d.records[j])
	})

	d.logger.WithField("field", field).Debug("Dataset sorted descending")
}

// Snapshots materializes every record into a Snapshot stamped with the
// given ingestion date.
func (d *Dataset) Snapshots(ingestDate time.Time) []Snapshot {
	snaps := make([]Snapshot, 0, len(d.records))
	for _, r := range d.records {
		snaps = append(snaps, Snapshot{Record: r, IngestDate: ingestDate})
	}
	return snaps
}
