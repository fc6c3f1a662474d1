package search

import "strings"

// canonicalFields maps case-folded field names to the exact-case names
// stored in the index. It is built once and only read afterwards.
var canonicalFields = map[string]string{
	"sender":    "Sender",
	"recipient": "Recipient",
	"subject":   "Subject",
	"body":      "Body",
	"id":        "Id",
}

// CanonicalField returns the index field name for name, matched
// case-insensitively.
func CanonicalField(name string) (string, bool) {
	canonical, ok := canonicalFields[strings.ToLower(name)]
	return canonical, ok
}

// Normalize rewrites field prefixes in a raw query to their canonical case.
//
// A field prefix is an identifier ([A-Za-z_][A-Za-z0-9_]*) followed by
// optional whitespace and a colon, starting at the beginning of the query or
// right after whitespace. Known identifiers are replaced by "Canonical:";
// anything else is copied through unchanged.
func Normalize(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))

	i := 0
	for i < len(raw) {
		atTokenStart := i == 0 || isSpace(raw[i-1])
		if !atTokenStart || !isIdentStart(raw[i]) {
			sb.WriteByte(raw[i])
			i++
			continue
		}

		end := i + 1
		for end < len(raw) && isIdentPart(raw[end]) {
			end++
		}

		colon := end
		for colon < len(raw) && isSpace(raw[colon]) {
			colon++
		}

		if colon < len(raw) && raw[colon] == ':' {
			if canonical, ok := CanonicalField(raw[i:end]); ok {
				sb.WriteString(canonical)
				sb.WriteByte(':')
				i = colon + 1
				continue
			}
		}

		// Not a known field prefix: copy the identifier and move on.
		sb.WriteString(raw[i:end])
		i = end
	}

	return sb.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
