package telemetry

import (
	"fmt"
	"time"
)

// Report is the persisted telemetry over a date window, as shown by
// `msgindex stats queries`.
type Report struct {
	From              string                  `json:"from"`
	To                string                  `json:"to"`
	QueryTypeCounts   map[QueryType]int64     `json:"query_type_counts"`
	Latency           map[LatencyBucket]int64 `json:"latency"`
	TopTerms          []TermCount             `json:"top_terms"`
	ZeroResultQueries []string                `json:"zero_result_queries"`
}

// TotalQueries sums the query type counts.
func (r Report) TotalQueries() int64 {
	return sum(r.QueryTypeCounts)
}

// LoadReport reads the last days days (including today) of telemetry.
func LoadReport(store QueryMetricsStore, days, limit int, now time.Time) (Report, error) {
	if days <= 0 {
		days = 7
	}
	if limit <= 0 {
		limit = 10
	}

	r := Report{
		From: now.AddDate(0, 0, -(days - 1)).Format("2006-01-02"),
		To:   now.Format("2006-01-02"),
	}

	var err error
	if r.QueryTypeCounts, err = store.GetQueryTypeCounts(r.From, r.To); err != nil {
		return Report{}, fmt.Errorf("load query types: %w", err)
	}
	if r.Latency, err = store.GetLatencyCounts(r.From, r.To); err != nil {
		return Report{}, fmt.Errorf("load latency: %w", err)
	}
	if r.TopTerms, err = store.GetTopTerms(limit); err != nil {
		return Report{}, fmt.Errorf("load top terms: %w", err)
	}
	if r.ZeroResultQueries, err = store.GetZeroResultQueries(limit); err != nil {
		return Report{}, fmt.Errorf("load zero-result queries: %w", err)
	}
	return r, nil
}
