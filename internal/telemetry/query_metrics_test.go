package telemetry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want LatencyBucket
	}{
		{0, BucketP10},
		{9 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{499 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.d), tt.d.String())
	}
}

func TestExtractTerms(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"Sender:alice AND Subject:kickoff", []string{"alice", "kickoff"}},
		{`"Project Kickoff" NOT lunch`, []string{"project", "kickoff", "lunch"}},
		{"+budget -draft kick*", []string{"budget", "draft", "kick"}},
		{"a an the", []string{"the"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTerms(tt.query))
		})
	}
}

func TestRing(t *testing.T) {
	tests := []struct {
		name string
		cap  int
		add  int
		want []int
	}{
		{"empty", 3, 0, []int{}},
		{"partial", 3, 2, []int{1, 2}},
		{"exactly full", 3, 3, []int{1, 2, 3}},
		{"wrapped", 3, 5, []int{3, 4, 5}},
		{"wrapped twice", 2, 7, []int{6, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRing[int](tt.cap)
			for i := 1; i <= tt.add; i++ {
				r.Add(i)
			}
			assert.Equal(t, tt.want, r.Items())
			assert.Equal(t, len(tt.want), r.Len())
		})
	}
}

func TestRing_DefaultCapacity(t *testing.T) {
	r := NewRing[string](0)
	for i := range 150 {
		r.Add(fmt.Sprint(i))
	}
	assert.Equal(t, 100, r.Len())
	assert.Equal(t, "50", r.Items()[0])
}

func TestQueryMetrics_Record(t *testing.T) {
	// Given: an in-memory collector
	m := NewQueryMetrics(nil)

	// When: recording a mix of queries
	m.Record(QueryEvent{Query: "Sender:alice", QueryType: "fielded", ResultCount: 2, Latency: 3 * time.Millisecond})
	m.Record(QueryEvent{Query: "sender:ALICE", QueryType: "fielded", ResultCount: 2, Latency: 20 * time.Millisecond})
	m.Record(QueryEvent{Query: "zebra", QueryType: "free_text", ResultCount: 0})
	m.Record(QueryEvent{Query: "zebra", QueryType: "free_text", ResultCount: 0})

	// Then: the snapshot aggregates them
	s := m.Snapshot()
	assert.Equal(t, int64(4), s.TotalQueries)
	assert.Equal(t, int64(2), s.QueryTypeCounts["fielded"])
	assert.Equal(t, int64(2), s.ZeroResultCount)
	assert.Equal(t, []string{"zebra"}, s.ZeroResultQueries)
	assert.Equal(t, int64(2), s.ExactRepeatCount)
	assert.Equal(t, int64(3), s.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), s.LatencyDistribution[BucketP50])
	require.NotEmpty(t, s.TopTerms)
	assert.Equal(t, TermCount{Term: "alice", Count: 2}, s.TopTerms[0])
	assert.InDelta(t, 50.0, s.ZeroResultPercentage(), 0.001)
}

func TestQueryMetrics_TopTermsAreBounded(t *testing.T) {
	m := NewQueryMetricsWithConfig(nil, QueryMetricsConfig{TopTermsCapacity: 5})

	for i := range 20 {
		m.Record(QueryEvent{Query: fmt.Sprintf("term%03d", i), ResultCount: 1})
	}

	assert.Len(t, m.Snapshot().TopTerms, 5)
}

func TestQueryMetrics_ConcurrentRecord(t *testing.T) {
	m := NewQueryMetrics(nil)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for range 100 {
				m.Record(QueryEvent{Query: fmt.Sprintf("query %d", i), ResultCount: i % 2})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1000), m.Snapshot().TotalQueries)
}

func TestQueryMetrics_FlushWritesIncrementsOnce(t *testing.T) {
	// Given: a collector backed by SQLite
	store := openTestStore(t)
	m := NewQueryMetrics(store)
	m.Record(QueryEvent{Query: "budget", QueryType: "free_text", ResultCount: 1})
	m.Record(QueryEvent{Query: "nothing here", QueryType: "free_text", ResultCount: 0})

	// When: flushing twice with one more query in between
	require.NoError(t, m.Flush())
	m.Record(QueryEvent{Query: "budget", QueryType: "free_text", ResultCount: 1})
	require.NoError(t, m.Flush())
	require.NoError(t, m.Flush())

	// Then: the persisted counts match what was recorded
	today := time.Now().Format("2006-01-02")
	types, err := store.GetQueryTypeCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(3), types["free_text"])

	terms, err := store.GetTopTerms(1)
	require.NoError(t, err)
	assert.Equal(t, []TermCount{{Term: "budget", Count: 2}}, terms)

	zero, err := store.GetZeroResultQueries(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"nothing here"}, zero)
}

func TestQueryMetrics_CloseFlushesAndStopsRecording(t *testing.T) {
	store := openTestStore(t)
	m := NewQueryMetrics(store)
	m.Record(QueryEvent{Query: "one", QueryType: "free_text", ResultCount: 1})

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	m.Record(QueryEvent{Query: "two", QueryType: "free_text", ResultCount: 1})

	today := time.Now().Format("2006-01-02")
	types, err := store.GetQueryTypeCounts(today, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), types["free_text"])
}

func TestQueryMetrics_RunFlushesOnCancel(t *testing.T) {
	store := openTestStore(t)
	m := NewQueryMetricsWithConfig(store, QueryMetricsConfig{FlushInterval: time.Hour})
	m.Record(QueryEvent{Query: "lunch", QueryType: "free_text", ResultCount: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	terms, err := store.GetTopTerms(5)
	require.NoError(t, err)
	assert.Equal(t, []TermCount{{Term: "lunch", Count: 1}}, terms)
}
