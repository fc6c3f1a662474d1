package store

import (
	"fmt"
	"time"
)

// Field names as stored in the index. Query field matching is exact-case.
const (
	FieldID        = "Id"
	FieldSender    = "Sender"
	FieldRecipient = "Recipient"
	FieldSubject   = "Subject"
	FieldBody      = "Body"
	FieldTimestamp = "TimestampTicks"
)

// SearchFields are the fields an unqualified query term is matched against.
var SearchFields = []string{FieldSender, FieldRecipient, FieldSubject, FieldBody, FieldID}

// MinTimestamp is reported for documents without a usable timestamp.
var MinTimestamp = time.Time{}

// Document is the field-encoded projection of a Message.
type Document map[string]any

// Encode converts a Message into its indexed field set.
// Every text field is stored as given, empty or not, and Recipient holds
// one value per recipient in order.
// TimestampTicks holds Unix microseconds (UTC), zero for the zero time.
func Encode(m Message) Document {
	doc := Document{
		FieldID:      m.ID,
		FieldSender:  m.Sender,
		FieldSubject: m.Subject,
		FieldBody:    m.Body,
	}
	if len(m.Recipients) > 0 {
		doc[FieldRecipient] = append([]string(nil), m.Recipients...)
	}
	doc[FieldTimestamp] = float64(toTicks(m.Timestamp))
	return doc
}

// Decode rebuilds a Message from stored field values. It never fails:
// an absent text field becomes a placeholder while an empty stored value is
// kept, missing recipients become an empty slice, and a missing or zero
// timestamp becomes MinTimestamp.
func Decode(fields map[string]any) Message {
	m := Message{
		ID:         stringField(fields, FieldID, ""),
		Sender:     stringField(fields, FieldSender, notStored(FieldSender)),
		Subject:    stringField(fields, FieldSubject, notStored(FieldSubject)),
		Body:       stringField(fields, FieldBody, notStored(FieldBody)),
		Recipients: stringsField(fields, FieldRecipient),
		Timestamp:  MinTimestamp,
	}

	if ticks, ok := numberField(fields, FieldTimestamp); ok && ticks != 0 {
		m.Timestamp = fromTicks(ticks)
	}
	return m
}

func notStored(field string) string {
	return fmt.Sprintf("[%s not stored]", field)
}

func toTicks(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMicro()
}

func fromTicks(ticks int64) time.Time {
	return time.UnixMicro(ticks).UTC()
}

func stringField(fields map[string]any, name, fallback string) string {
	switch v := fields[name].(type) {
	case string:
		return v
	case []any:
		// A single-valued field indexed twice comes back as a list.
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return fallback
}

func stringsField(fields map[string]any, name string) []string {
	switch v := fields[name].(type) {
	case string:
		return []string{v}
	case []string:
		return append([]string{}, v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

func numberField(fields map[string]any, name string) (int64, bool) {
	switch v := fields[name].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case []any:
		if len(v) > 0 {
			if f, ok := v[0].(float64); ok {
				return int64(f), true
			}
		}
	}
	return 0, false
}
