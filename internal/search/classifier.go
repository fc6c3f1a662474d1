package search

import "strings"

// QueryType is a coarse classification of a query, used for telemetry.
type QueryType string

const (
	QueryTypeFielded  QueryType = "fielded"
	QueryTypeBoolean  QueryType = "boolean"
	QueryTypeWildcard QueryType = "wildcard"
	QueryTypePhrase   QueryType = "phrase"
	QueryTypeFreeText QueryType = "free_text"
)

// Classify determines the query type of a normalized query. The most
// specific syntax wins: boolean over fielded over wildcard over phrase.
func Classify(normalized string) QueryType {
	clauses := splitClauses(strings.TrimSpace(normalized))
	if len(clauses) == 0 {
		return QueryTypeFreeText
	}

	var fielded, wildcard, phrase bool
	for _, c := range clauses {
		switch c {
		case keywordAnd, keywordOr, keywordNot:
			return QueryTypeBoolean
		}
		if strings.HasPrefix(c, "+") || strings.HasPrefix(c, "-") {
			return QueryTypeBoolean
		}
		if field, _, ok := strings.Cut(c, ":"); ok {
			if _, known := canonicalFields[strings.ToLower(field)]; known {
				fielded = true
			}
		}
		if strings.ContainsAny(c, "*?") {
			wildcard = true
		}
		if strings.Contains(c, `"`) {
			phrase = true
		}
	}

	switch {
	case fielded:
		return QueryTypeFielded
	case wildcard:
		return QueryTypeWildcard
	case phrase:
		return QueryTypePhrase
	default:
		return QueryTypeFreeText
	}
}
