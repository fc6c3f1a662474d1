package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/msgindex/internal/telemetry"
)

func TestStatsCmd_Local(t *testing.T) {
	env := newTestEnv(t)

	v := statsJSON(t, env)

	assert.Equal(t, kindLocal, v.Backend)
	assert.NotEmpty(t, v.IndexPath)
	assert.True(t, v.Stats.Available())
	assert.EqualValues(t, 6, v.Stats.NumDocs)
}

func TestStatsCmd_Text(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.local(t, "stats", "--no-color")

	require.NoError(t, err)
	assert.Contains(t, out, "Index statistics")
	assert.Contains(t, out, "Documents:   6")
}

func TestOptimizeCmd_LeavesOneSegment(t *testing.T) {
	// Given: several commits, each adding a segment
	env := newTestEnv(t)
	for _, subj := range []string{"one", "two", "three"} {
		_, err := env.local(t, "add", "--sender", "a@x", "--to", "b@x", "--subject", subj, "--body", "body "+subj)
		require.NoError(t, err)
	}

	// When: optimizing
	out, err := env.local(t, "optimize")
	require.NoError(t, err)
	assert.Contains(t, out, "Optimized")

	// Then: the index reports itself optimized
	v := statsJSON(t, env)
	assert.True(t, v.Stats.IsOptimized)
	assert.Equal(t, 1, v.Stats.NumSegments)
	assert.EqualValues(t, 9, v.Stats.NumDocs)
}

func TestStatsQueries_Disabled(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.local(t, "stats", "queries")

	require.NoError(t, err)
	assert.Contains(t, out, "disabled")
}

func TestStatsQueries_ReportsRecordedSearches(t *testing.T) {
	// Given: telemetry on and two searches, one matching nothing
	env := newTestEnv(t)
	t.Setenv("MSGINDEX_TELEMETRY", "true")
	_, err := env.local(t, "search", "kickoff")
	require.NoError(t, err)
	_, err = env.local(t, "search", "xylophone")
	require.NoError(t, err)

	// When: reading the report
	out, err := env.local(t, "stats", "queries", "--json")
	require.NoError(t, err)

	// Then: both searches were flushed on exit
	var rep telemetry.Report
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.EqualValues(t, 2, rep.TotalQueries())
	assert.Contains(t, rep.ZeroResultQueries, "xylophone")
}

func TestStatsQueries_Text(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("MSGINDEX_TELEMETRY", "true")
	_, err := env.local(t, "search", "kickoff")
	require.NoError(t, err)

	out, err := env.local(t, "stats", "queries")

	require.NoError(t, err)
	assert.Contains(t, out, "Queries ")
	assert.Contains(t, out, "By type:")
	assert.Contains(t, out, "kickoff")
}
