package search

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2/search/query"
)

// Boolean keywords accepted at the top level of a query.
const (
	keywordAnd = "AND"
	keywordOr  = "OR"
	keywordNot = "NOT"
)

// Prepare turns a normalized query into an executable engine query.
// It returns the query string actually parsed, which is reported back to
// callers for diagnostics even when parsing fails.
func Prepare(normalized string) (query.Query, string, error) {
	translated, err := translateOperators(normalized)
	if err != nil {
		return nil, normalized, err
	}

	parsed, err := query.NewQueryStringQuery(translated).Parse()
	if err != nil {
		return nil, translated, err
	}
	if v, ok := parsed.(query.ValidatableQuery); ok {
		if err := v.Validate(); err != nil {
			return nil, translated, err
		}
	}

	if onlyExclusions(parsed) {
		return query.NewMatchNoneQuery(), translated, nil
	}

	lowercaseExpanded(parsed)
	return parsed, translated, nil
}

// onlyExclusions reports whether q is a boolean query made only of
// prohibited clauses. The engine would match every other document for it;
// such a query matches nothing instead.
func onlyExclusions(q query.Query) bool {
	bq, ok := q.(*query.BooleanQuery)
	if !ok || isEmptyClause(bq.MustNot) {
		return false
	}
	return isEmptyClause(bq.Must) && isEmptyClause(bq.Should)
}

func isEmptyClause(q query.Query) bool {
	switch tq := q.(type) {
	case nil:
		return true
	case *query.ConjunctionQuery:
		return len(tq.Conjuncts) == 0
	case *query.DisjunctionQuery:
		return len(tq.Disjuncts) == 0
	}
	return false
}

// translateOperators rewrites top-level AND/OR/NOT keywords into the
// engine's +/- clause syntax. Unprefixed clauses stay optional, so clauses
// are OR-combined by default. Queries without keywords are returned as is.
func translateOperators(q string) (string, error) {
	clauses := splitClauses(q)

	hasKeyword := false
	for _, c := range clauses {
		if c == keywordAnd || c == keywordOr || c == keywordNot {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return q, nil
	}

	out := make([]string, 0, len(clauses))
	var pendingRequired, pendingNot bool
	var last string

	for _, c := range clauses {
		switch c {
		case keywordAnd:
			if len(out) == 0 {
				return "", fmt.Errorf("%s is missing a left operand", keywordAnd)
			}
			out[len(out)-1] = markRequired(out[len(out)-1])
			pendingRequired = true
		case keywordOr:
			if len(out) == 0 {
				return "", fmt.Errorf("%s is missing a left operand", keywordOr)
			}
		case keywordNot:
			pendingNot = true
		default:
			switch {
			case pendingNot:
				c = "-" + strings.TrimLeft(c, "+-")
			case pendingRequired:
				c = markRequired(c)
			}
			pendingNot, pendingRequired = false, false
			out = append(out, c)
		}
		last = c
	}

	if last == keywordAnd || last == keywordOr || last == keywordNot {
		return "", fmt.Errorf("%s is missing a right operand", last)
	}
	return strings.Join(out, " "), nil
}

func markRequired(clause string) string {
	if strings.HasPrefix(clause, "+") || strings.HasPrefix(clause, "-") {
		return clause
	}
	return "+" + clause
}

// splitClauses splits q on whitespace outside quotes and parentheses.
// A clause ending in ':' is joined with the one that follows it.
func splitClauses(q string) []string {
	var clauses []string
	var cur strings.Builder
	depth := 0
	inQuote := false

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		clauses = append(clauses, cur.String())
		cur.Reset()
	}

	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case c == '\\' && i+1 < len(q):
			cur.WriteByte(c)
			i++
			cur.WriteByte(q[i])
			continue
		case c == '"':
			inQuote = !inQuote
		case c == '(' && !inQuote:
			depth++
		case c == ')' && !inQuote && depth > 0:
			depth--
		case isSpace(c) && !inQuote && depth == 0:
			if s := cur.String(); strings.HasSuffix(s, ":") {
				continue
			}
			flush()
			continue
		}
		cur.WriteByte(c)
	}
	flush()
	return clauses
}

// lowercaseExpanded lowercases the terms of term, wildcard, prefix, regexp
// and fuzzy nodes. Analyzed nodes are lowercased by the analyzer already.
func lowercaseExpanded(q query.Query) {
	switch tq := q.(type) {
	case *query.BooleanQuery:
		lowercaseExpanded(tq.Must)
		lowercaseExpanded(tq.Should)
		lowercaseExpanded(tq.MustNot)
	case *query.ConjunctionQuery:
		for _, c := range tq.Conjuncts {
			lowercaseExpanded(c)
		}
	case *query.DisjunctionQuery:
		for _, d := range tq.Disjuncts {
			lowercaseExpanded(d)
		}
	case *query.TermQuery:
		tq.Term = strings.ToLower(tq.Term)
	case *query.WildcardQuery:
		tq.Wildcard = strings.ToLower(tq.Wildcard)
	case *query.PrefixQuery:
		tq.Prefix = strings.ToLower(tq.Prefix)
	case *query.RegexpQuery:
		tq.Regexp = strings.ToLower(tq.Regexp)
	case *query.FuzzyQuery:
		tq.Term = strings.ToLower(tq.Term)
	}
}
