package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"lowercase prefixes", "sender:alice AND subject:kickoff", "Sender:alice AND Subject:kickoff"},
		{"unknown field untouched", "unknownfield:x", "unknownfield:x"},
		{"mixed case", "SeNdEr:bob", "Sender:bob"},
		{"whitespace before colon dropped", "subject  :hello", "Subject:hello"},
		{"all fields", "id:1 body:x recipient:y", "Id:1 Body:x Recipient:y"},
		{"not at token start", "xsender:alice", "xsender:alice"},
		{"inside phrase after space", `"about sender:alice"`, `"about Sender:alice"`},
		{"plain text", "hello world", "hello world"},
		{"canonical already", "Sender:alice", "Sender:alice"},
		{"identifier without colon", "sender alice", "sender alice"},
		{"empty", "", ""},
		{"prefix after tab", "a\tbody:x", "a\tBody:x"},
		{"digit start is not identifier", "1sender:x", "1sender:x"},
		{"value keeps its case", "subject:KickOff", "Subject:KickOff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestCanonicalField(t *testing.T) {
	got, ok := CanonicalField("RECIPIENT")
	assert.True(t, ok)
	assert.Equal(t, "Recipient", got)

	_, ok = CanonicalField("cc")
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  QueryType
	}{
		{"Sender:alice", QueryTypeFielded},
		{"alice AND bob", QueryTypeBoolean},
		{"+alice -bob", QueryTypeBoolean},
		{"kick*", QueryTypeWildcard},
		{`"quarterly report"`, QueryTypePhrase},
		{"hello world", QueryTypeFreeText},
		{"", QueryTypeFreeText},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query))
		})
	}
}
