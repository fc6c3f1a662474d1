package mcp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/msgindex/internal/store"
)

func TestFormatSearchResults(t *testing.T) {
	ts := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	res := store.SearchResult{
		TotalHits: 3,
		Hits: []store.Hit{{
			Score: 1.25,
			Message: store.Message{
				ID: "m-1", Sender: "alice@example.com", Recipients: []string{"bob@example.com", "carol@example.com"},
				Subject: "Project Kickoff", Body: "Monday", Timestamp: ts,
			},
		}},
	}

	out := FormatSearchResults("kickoff", res)

	assert.Contains(t, out, `## Messages matching "kickoff"`)
	assert.Contains(t, out, "Showing 1 of 3 matches")
	assert.Contains(t, out, "### 1. Project Kickoff (score: 1.25)")
	assert.Contains(t, out, "bob@example.com, carol@example.com")
	assert.Contains(t, out, "2024-03-04 09:00:00Z")
	assert.Contains(t, out, "`m-1`")
}

func TestFormatSearchResults_EmptyAndFailed(t *testing.T) {
	assert.Equal(t, `No messages found for "x"`, FormatSearchResults("x", store.SearchResult{}))
	assert.Equal(t, `Search for "" failed: query required`,
		FormatSearchResults("", store.SearchResult{Error: "query required"}))
}

func TestToSearchOutput_TruncatesBodies(t *testing.T) {
	long := strings.Repeat("é", maxSnippetRunes+10)
	res := store.SearchResult{Hits: []store.Hit{{Message: store.Message{ID: "a", Body: long}}}, TotalHits: 1}

	out := ToSearchOutput(res)

	body := []rune(out.Hits[0].Message.Body)
	assert.Len(t, body, maxSnippetRunes+1)
	assert.Equal(t, '…', body[len(body)-1])
	assert.Equal(t, []string{}, out.Hits[0].Message.Recipients)
}

func TestToStatsOutput(t *testing.T) {
	assert.False(t, ToStatsOutput(store.UnavailableStats).Available)
	assert.True(t, ToStatsOutput(store.IndexStats{NumDocs: 2, MaxDocs: 2, NumSegments: 1, IsOptimized: true}).Available)
}
