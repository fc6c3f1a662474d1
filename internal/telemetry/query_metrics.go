// Package telemetry provides local query telemetry for the message index.
// All data stays on this machine.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryMetricsSnapshot is an immutable snapshot of in-memory metrics.
type QueryMetricsSnapshot struct {
	QueryTypeCounts     map[QueryType]int64     `json:"query_type_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the percentage of zero-result queries.
func (s *QueryMetricsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// QueryMetricsStore persists aggregated metrics.
type QueryMetricsStore interface {
	// SaveBatch adds b to the totals for day (YYYY-MM-DD).
	SaveBatch(day string, b Batch) error
	GetQueryTypeCounts(from, to string) (map[QueryType]int64, error)
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)
	GetTopTerms(limit int) ([]TermCount, error)
	GetZeroResultQueries(limit int) ([]string, error)
	Close() error
}

// QueryMetricsConfig configures the collector.
type QueryMetricsConfig struct {
	TopTermsCapacity      int           // default 100
	ZeroResultsCapacity   int           // default 100
	RecentQueriesCapacity int           // default 500
	FlushInterval         time.Duration // default 60s
}

// DefaultQueryMetricsConfig returns sensible defaults.
func DefaultQueryMetricsConfig() QueryMetricsConfig {
	return QueryMetricsConfig{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
		FlushInterval:         60 * time.Second,
	}
}

// Batch is the set of increments recorded between two flushes.
type Batch struct {
	QueryTypes  map[QueryType]int64
	Latencies   map[LatencyBucket]int64
	Terms       map[string]int64
	ZeroResults []QueryEvent
}

// NewBatch returns an empty batch ready for counting.
func NewBatch() Batch {
	return Batch{
		QueryTypes: make(map[QueryType]int64),
		Latencies:  make(map[LatencyBucket]int64),
		Terms:      make(map[string]int64),
	}
}

// Empty reports whether the batch holds no recorded query.
func (b Batch) Empty() bool {
	return len(b.QueryTypes) == 0 && len(b.ZeroResults) == 0
}

// QueryMetrics collects query telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	queryTypes      map[QueryType]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *Ring[string]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	startTime       time.Time

	// Keys are xxhash digests of the case-folded query.
	recentQueries    *lru.Cache[uint64, struct{}]
	recentZero       *lru.Cache[uint64, struct{}]
	exactRepeatCount int64

	unflushed Batch
	store     QueryMetricsStore
	config    QueryMetricsConfig
	closed    bool
}

// NewQueryMetrics creates a collector with the default configuration.
// A nil store keeps metrics in memory only.
func NewQueryMetrics(store QueryMetricsStore) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultQueryMetricsConfig())
}

// NewQueryMetricsWithConfig creates a collector with a custom configuration.
func NewQueryMetricsWithConfig(store QueryMetricsStore, cfg QueryMetricsConfig) *QueryMetrics {
	def := DefaultQueryMetricsConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recentQueries, _ := lru.New[uint64, struct{}](cfg.RecentQueriesCapacity)
	recentZero, _ := lru.New[uint64, struct{}](cfg.ZeroResultsCapacity)

	return &QueryMetrics{
		queryTypes:    make(map[QueryType]int64),
		topTerms:      topTerms,
		zeroResults:   NewRing[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		startTime:     time.Now(),
		recentQueries: recentQueries,
		recentZero:    recentZero,
		unflushed:     NewBatch(),
		store:         store,
		config:        cfg,
	}
}

// Record captures one search. Calls after Close are ignored.
func (m *QueryMetrics) Record(event QueryEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.totalQueries++
	m.queryTypes[event.QueryType]++
	m.unflushed.QueryTypes[event.QueryType]++

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
		m.unflushed.Terms[term]++
	}

	bucket := LatencyToBucket(event.Latency)
	m.latencies[bucket]++
	m.unflushed.Latencies[bucket]++

	key := hashQuery(event.Query)
	if _, seen := m.recentQueries.Get(key); seen {
		m.exactRepeatCount++
	}
	m.recentQueries.Add(key, struct{}{})

	if event.IsZeroResult() {
		m.zeroResultCount++
		// A repeated zero-result query is only kept once in the buffer.
		if _, seen := m.recentZero.Get(key); !seen {
			m.recentZero.Add(key, struct{}{})
			m.zeroResults.Add(event.Query)
			m.unflushed.ZeroResults = append(m.unflushed.ZeroResults, event)
		}
	}
}

func hashQuery(query string) uint64 {
	return xxhash.Sum64String(strings.ToLower(strings.TrimSpace(query)))
}

// Snapshot returns current in-memory metrics.
func (m *QueryMetrics) Snapshot() *QueryMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *QueryMetrics) snapshotLocked() *QueryMetricsSnapshot {
	topTerms := make([]TermCount, 0, m.topTerms.Len())
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	sort.SliceStable(topTerms, func(i, j int) bool {
		if topTerms[i].Count != topTerms[j].Count {
			return topTerms[i].Count > topTerms[j].Count
		}
		return topTerms[i].Term < topTerms[j].Term
	})

	return &QueryMetricsSnapshot{
		QueryTypeCounts:     maps.Clone(m.queryTypes),
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: maps.Clone(m.latencies),
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		ExactRepeatCount:    m.exactRepeatCount,
		Since:               m.startTime,
	}
}

// Flush persists everything recorded since the previous flush. Counts are
// written as increments, so repeated flushes never double count.
// A failed flush drops its batch.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	batch := m.unflushed
	m.unflushed = NewBatch()
	m.mu.Unlock()

	if batch.Empty() {
		return nil
	}

	if err := m.store.SaveBatch(time.Now().Format("2006-01-02"), batch); err != nil {
		return fmt.Errorf("flush telemetry: %w", err)
	}

	slog.Debug("telemetry_flushed",
		slog.Int64("queries", sum(batch.QueryTypes)),
		slog.Int("zero_results", len(batch.ZeroResults)))
	return nil
}

// Run flushes periodically until ctx is done, then flushes a final time.
func (m *QueryMetrics) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Flush(); err != nil {
				slog.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			return m.Flush()
		}
	}
}

// Close stops recording and flushes the remainder.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Flush()
}

func sum[K comparable](counts map[K]int64) int64 {
	var total int64
	for _, v := range counts {
		total += v
	}
	return total
}
