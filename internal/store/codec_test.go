package store

import (
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessage() Message {
	return Message{
		ID:         "msg-1",
		Sender:     "Alice",
		Recipients: []string{"Bob", "Charlie"},
		Subject:    "Project Kickoff",
		Body:       "Agenda includes setup and initial indexing strategy.",
		Timestamp:  time.Date(2024, 3, 4, 10, 30, 15, 123456000, time.UTC),
	}
}

// storedFields mimics what the engine returns for stored fields: strings,
// a list for multi-valued fields, and float64 for numerics.
func storedFields(doc Document) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch tv := v.(type) {
		case []string:
			if len(tv) == 1 {
				out[k] = tv[0]
				continue
			}
			list := make([]any, len(tv))
			for i, s := range tv {
				list[i] = s
			}
			out[k] = list
		default:
			out[k] = v
		}
	}
	return out
}

func TestCodec_RoundTrip(t *testing.T) {
	// Given: a fully populated message
	msg := sampleMessage()

	// When: encoding and decoding it
	got := Decode(storedFields(Encode(msg)))

	// Then: every field is reproduced
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, msg.Sender, got.Sender)
	assert.Equal(t, msg.Subject, got.Subject)
	assert.Equal(t, msg.Body, got.Body)
	assert.True(t, msg.Timestamp.Equal(got.Timestamp), "want %s got %s", msg.Timestamp, got.Timestamp)
	assert.ElementsMatch(t, msg.Recipients, got.Recipients)
}

func TestCodec_RoundTrip_SingleRecipient(t *testing.T) {
	msg := sampleMessage()
	msg.Recipients = []string{"Bob"}

	got := Decode(storedFields(Encode(msg)))

	assert.Equal(t, []string{"Bob"}, got.Recipients)
}

func TestEncode_Fields(t *testing.T) {
	doc := Encode(sampleMessage())

	assert.Equal(t, "msg-1", doc[FieldID])
	assert.Equal(t, []string{"Bob", "Charlie"}, doc[FieldRecipient])
	require.IsType(t, float64(0), doc[FieldTimestamp])
	assert.Equal(t, float64(sampleMessage().Timestamp.UnixMicro()), doc[FieldTimestamp])
}

func TestEncode_ZeroTimestampIsZeroTicks(t *testing.T) {
	msg := sampleMessage()
	msg.Timestamp = time.Time{}

	doc := Encode(msg)

	assert.Equal(t, float64(0), doc[FieldTimestamp])
	assert.True(t, Decode(storedFields(doc)).Timestamp.IsZero())
}

func TestEncode_KeepsEmptyText(t *testing.T) {
	msg := sampleMessage()
	msg.Body = ""
	msg.Recipients = []string{"", "Bob"}

	doc := Encode(msg)

	body, hasBody := doc[FieldBody]
	assert.True(t, hasBody)
	assert.Equal(t, "", body)
	assert.Equal(t, []string{"", "Bob"}, doc[FieldRecipient])
}

// indexedMessage reads id back through a search hit's stored fields.
func indexedMessage(t *testing.T, g *Guardian, id string) Message {
	t.Helper()
	var got Message
	err := g.Read(func(idx bleve.Index) error {
		req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{id}))
		req.Fields = []string{"*"}
		res, err := idx.Search(req)
		if err != nil {
			return err
		}
		require.Len(t, res.Hits, 1)
		got = Decode(res.Hits[0].Fields)
		return nil
	})
	require.NoError(t, err)
	return got
}

func TestCodec_RoundTripThroughIndex(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Message)
	}{
		{"fully populated", func(*Message) {}},
		{"empty body", func(m *Message) { m.Body = "" }},
		{"empty subject", func(m *Message) { m.Subject = "" }},
		{"blank recipient kept", func(m *Message) { m.Recipients = []string{"Bob", "", "Carol"} }},
		{"duplicate recipients", func(m *Message) { m.Recipients = []string{"Bob", "Bob"} }},
		{"single blank recipient", func(m *Message) { m.Recipients = []string{""} }},
		{"no recipients", func(m *Message) { m.Recipients = []string{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a message stored through a real index
			g := newTestGuardian(t)
			msg := sampleMessage()
			tt.mutate(&msg)
			_, err := g.Rebuild([]Message{msg}, true, nil)
			require.NoError(t, err)

			// When: reading it back from its stored fields
			got := indexedMessage(t, g, msg.ID)

			// Then: text is reproduced as given and recipients as a multiset
			assert.Equal(t, msg.Sender, got.Sender)
			assert.Equal(t, msg.Subject, got.Subject)
			assert.Equal(t, msg.Body, got.Body)
			assert.ElementsMatch(t, msg.Recipients, got.Recipients)
			assert.True(t, msg.Timestamp.Equal(got.Timestamp))
		})
	}
}

func TestDecode_MissingFields(t *testing.T) {
	// Given: a partially stored document
	fields := map[string]any{FieldID: "partial"}

	// When: decoding
	got := Decode(fields)

	// Then: placeholders and defaults are used instead of failing
	assert.Equal(t, "partial", got.ID)
	assert.Equal(t, "[Body not stored]", got.Body)
	assert.Equal(t, "[Sender not stored]", got.Sender)
	assert.Equal(t, "[Subject not stored]", got.Subject)
	assert.NotNil(t, got.Recipients)
	assert.Empty(t, got.Recipients)
	assert.Equal(t, MinTimestamp, got.Timestamp)
}

func TestDecode_ZeroTicksIsMinTimestamp(t *testing.T) {
	got := Decode(map[string]any{FieldID: "x", FieldTimestamp: float64(0)})

	assert.Equal(t, MinTimestamp, got.Timestamp)
}

func TestDecode_TimestampIsUTC(t *testing.T) {
	ts := time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)

	got := Decode(map[string]any{FieldTimestamp: float64(ts.UnixMicro())})

	assert.Equal(t, time.UTC, got.Timestamp.Location())
	assert.True(t, ts.Equal(got.Timestamp))
}

func TestMessage_CloneIsIndependent(t *testing.T) {
	msg := sampleMessage()

	clone := msg.Clone()
	clone.Recipients[0] = "Mallory"

	assert.Equal(t, "Bob", msg.Recipients[0])
}
