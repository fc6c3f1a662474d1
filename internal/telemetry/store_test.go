package telemetry

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteMetricsStore {
	t.Helper()
	s, err := OpenSQLiteMetricsStore(filepath.Join(t.TempDir(), "telemetry", "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteMetricsStore_SaveBatchAccumulates(t *testing.T) {
	// Given: two batches on one day and one outside the window
	s := openTestStore(t)
	require.NoError(t, s.SaveBatch("2026-01-06", Batch{
		QueryTypes: map[QueryType]int64{"fielded": 10, "boolean": 2},
		Latencies:  map[LatencyBucket]int64{BucketP10: 4},
	}))
	require.NoError(t, s.SaveBatch("2026-01-06", Batch{QueryTypes: map[QueryType]int64{"fielded": 5}}))
	require.NoError(t, s.SaveBatch("2026-01-09", Batch{
		QueryTypes: map[QueryType]int64{"fielded": 100},
		Latencies:  map[LatencyBucket]int64{BucketP500: 100},
	}))

	// When: reading the window
	types, err := s.GetQueryTypeCounts("2026-01-01", "2026-01-07")
	require.NoError(t, err)
	latency, err := s.GetLatencyCounts("2026-01-01", "2026-01-07")
	require.NoError(t, err)

	// Then: only in-window days are summed, and kinds stay separate
	assert.Equal(t, map[QueryType]int64{"fielded": 15, "boolean": 2}, types)
	assert.Equal(t, map[LatencyBucket]int64{BucketP10: 4}, latency)
}

func TestSQLiteMetricsStore_EmptyBatchIsNoop(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveBatch("2026-01-06", NewBatch()))

	types, err := s.GetQueryTypeCounts("2026-01-06", "2026-01-06")
	require.NoError(t, err)
	assert.Empty(t, types)
}

func TestSQLiteMetricsStore_TopTerms(t *testing.T) {
	s := openTestStore(t)
	day := "2026-01-06"
	one := map[QueryType]int64{"free_text": 1}

	require.NoError(t, s.SaveBatch(day, Batch{QueryTypes: one, Terms: map[string]int64{"alice": 3, "bob": 1, "carol": 3}}))
	require.NoError(t, s.SaveBatch(day, Batch{QueryTypes: one, Terms: map[string]int64{"bob": 5}}))

	got, err := s.GetTopTerms(2)
	require.NoError(t, err)
	assert.Equal(t, []TermCount{{Term: "bob", Count: 6}, {Term: "alice", Count: 3}}, got)
}

func TestSQLiteMetricsStore_ZeroResultHistoryIsBounded(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)

	var events []QueryEvent
	for i := range maxZeroResultRows + 5 {
		events = append(events, QueryEvent{Query: fmt.Sprintf("q%03d", i), Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	require.NoError(t, s.SaveBatch("2026-01-06", Batch{ZeroResults: events[:10]}))
	require.NoError(t, s.SaveBatch("2026-01-06", Batch{ZeroResults: events[10:]}))

	all, err := s.GetZeroResultQueries(1000)
	require.NoError(t, err)
	assert.Len(t, all, maxZeroResultRows)
	assert.Equal(t, fmt.Sprintf("q%03d", maxZeroResultRows+4), all[0])
	assert.Equal(t, "q005", all[len(all)-1])
}

func TestSQLiteMetricsStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")
	s, err := OpenSQLiteMetricsStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveBatch("2026-01-06", Batch{
		QueryTypes: map[QueryType]int64{"free_text": 1},
		Terms:      map[string]int64{"persist": 1},
	}))
	require.NoError(t, s.Close())

	s, err = OpenSQLiteMetricsStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetTopTerms(1)
	require.NoError(t, err)
	assert.Equal(t, []TermCount{{Term: "persist", Count: 1}}, got)
}

func TestLoadReport(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveBatch("2026-01-10", Batch{
		QueryTypes: map[QueryType]int64{"fielded": 3},
		Terms:      map[string]int64{"alice": 3},
	}))
	require.NoError(t, s.SaveBatch("2026-01-01", Batch{QueryTypes: map[QueryType]int64{"fielded": 50}}))

	r, err := LoadReport(s, 7, 5, now)

	require.NoError(t, err)
	assert.Equal(t, "2026-01-04", r.From)
	assert.Equal(t, "2026-01-10", r.To)
	assert.Equal(t, int64(3), r.TotalQueries())
	assert.Equal(t, []TermCount{{Term: "alice", Count: 3}}, r.TopTerms)
}
