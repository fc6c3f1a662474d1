package telemetry

import (
	"strings"
	"time"
)

// QueryType is the coarse classification of a search query
// (fielded, boolean, wildcard, phrase, free_text).
type QueryType string

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

var latencyBounds = []struct {
	below  time.Duration
	bucket LatencyBucket
}{
	{10 * time.Millisecond, BucketP10},
	{50 * time.Millisecond, BucketP50},
	{100 * time.Millisecond, BucketP100},
	{500 * time.Millisecond, BucketP500},
}

// LatencyToBucket maps a search duration onto the histogram.
func LatencyToBucket(d time.Duration) LatencyBucket {
	for _, b := range latencyBounds {
		if d < b.below {
			return b.bucket
		}
	}
	return BucketP1000
}

// QueryEvent is a single executed search.
type QueryEvent struct {
	Query       string
	QueryType   QueryType
	ResultCount int
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult returns true if this query matched nothing.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// ExtractTerms returns the lowercased search terms of a normalized query.
// Field prefixes, boolean keywords, operators and terms shorter than three
// characters are dropped.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(query) {
		switch w {
		case "AND", "OR", "NOT":
			continue
		}
		if _, value, ok := strings.Cut(w, ":"); ok {
			w = value
		}
		w = strings.ToLower(strings.Trim(w, `+-"()*?~^`))
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount represents a term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}
