package search

import (
	"testing"

	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateOperators(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no keywords", "alice bob", "alice bob"},
		{"and", "Sender:alice AND Subject:kickoff", "+Sender:alice +Subject:kickoff"},
		{"or", "alice OR bob", "alice bob"},
		{"not", "alice NOT bob", "alice -bob"},
		{"and not", "alice AND NOT bob", "+alice -bob"},
		{"chained and", "a AND b AND c", "+a +b +c"},
		{"quoted keyword kept", `"this AND that"`, `"this AND that"`},
		{"parenthesized group", "(a OR b) AND c", "+(a OR b) +c"},
		{"field with space after colon", "Subject: hi AND bob", "+Subject:hi +bob"},
		{"lowercase and is a term", "alice and bob", "alice and bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := translateOperators(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslateOperators_DanglingOperators(t *testing.T) {
	for _, in := range []string{"alice AND", "OR bob", "alice NOT", "AND"} {
		t.Run(in, func(t *testing.T) {
			_, err := translateOperators(in)
			assert.Error(t, err)
		})
	}
}

func TestSplitClauses(t *testing.T) {
	got := splitClauses(`Subject:"two words" (a b)  c\ d`)
	assert.Equal(t, []string{`Subject:"two words"`, "(a b)", `c\ d`}, got)
}

func TestPrepare_ValidQuery(t *testing.T) {
	q, parsed, err := Prepare("Sender:alice AND Subject:kickoff")

	require.NoError(t, err)
	assert.NotNil(t, q)
	assert.Equal(t, "+Sender:alice +Subject:kickoff", parsed)
}

func TestPrepare_InvalidQuery(t *testing.T) {
	// Given: an unbalanced operator
	// When: preparing
	_, parsed, err := Prepare("alice AND")

	// Then: the error is reported with the query that was attempted
	require.Error(t, err)
	assert.Equal(t, "alice AND", parsed)
}

func TestPrepare_OnlyExclusionsMatchNothing(t *testing.T) {
	tests := []struct {
		name string
		in   string
		none bool
	}{
		{"single not", "NOT zed", true},
		{"two nots", "NOT zed NOT ann", true},
		{"raw minus", "-zed", true},
		{"positive and not", "alice NOT zed", false},
		{"required and not", "alice AND NOT zed", false},
		{"plain term", "alice", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _, err := Prepare(tt.in)

			require.NoError(t, err)
			_, isNone := q.(*query.MatchNoneQuery)
			assert.Equal(t, tt.none, isNone)
		})
	}
}

func TestLowercaseExpanded(t *testing.T) {
	tq := query.NewTermQuery("Alice")
	wq := query.NewWildcardQuery("Ali*")
	pq := query.NewPrefixQuery("BO")
	conj := query.NewConjunctionQuery([]query.Query{tq, wq, query.NewDisjunctionQuery([]query.Query{pq})})

	lowercaseExpanded(conj)

	assert.Equal(t, "alice", tq.Term)
	assert.Equal(t, "ali*", wq.Wildcard)
	assert.Equal(t, "bo", pq.Prefix)
}
