package store

import (
	"slices"
	"time"
)

// Message is a short structured document held in the index.
// Values are always exchanged by copy; the store never retains a caller's
// Message beyond a single call.
type Message struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
}

// Clone returns an independent copy of m.
func (m Message) Clone() Message {
	m.Recipients = slices.Clone(m.Recipients)
	if m.Recipients == nil {
		m.Recipients = []string{}
	}
	return m
}

// Hit is a single scored search match.
type Hit struct {
	Score   float64 `json:"score"`
	Message Message `json:"message"`
}

// SearchResult is the outcome of a search. Error is non-empty when the query
// could not be executed; in that case Hits is empty and TotalHits is zero.
type SearchResult struct {
	Hits      []Hit  `json:"hits"`
	TotalHits uint64 `json:"total_hits"`
	Error     string `json:"error,omitempty"`

	// ParsedQuery is the query string handed to the engine, for diagnostics.
	ParsedQuery string `json:"parsed_query,omitempty"`
}

// Failed reports whether the search carried an error message.
func (r SearchResult) Failed() bool {
	return r.Error != ""
}

// IndexStats is a point-in-time view of index health. It is recomputed on
// every request and never cached.
type IndexStats struct {
	NumDocs     int64 `json:"num_docs"`
	MaxDocs     int64 `json:"max_docs"`
	NumSegments int   `json:"num_segments"`
	IsOptimized bool  `json:"is_optimized"`
}

// UnavailableStats is reported when the engine fails while computing stats.
var UnavailableStats = IndexStats{NumDocs: -1, MaxDocs: -1, NumSegments: -1}

// Available reports whether the stats were computed successfully.
func (s IndexStats) Available() bool {
	return s.NumDocs >= 0
}

// RebuildReport summarizes a rebuild.
type RebuildReport struct {
	Indexed  int           `json:"indexed"`
	Skipped  int           `json:"skipped"`
	Recreate bool          `json:"recreate"`
	Duration time.Duration `json:"duration"`
}

// ProgressFunc receives rebuild progress as messages are staged.
type ProgressFunc func(done, total int)
