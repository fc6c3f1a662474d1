package mcp

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Aman-CERP/msgindex/internal/store"
)

// maxSnippetRunes bounds message bodies in search output.
const maxSnippetRunes = 500

// FormatSearchResults renders a search result as markdown.
func FormatSearchResults(query string, res store.SearchResult) string {
	if res.Failed() {
		return fmt.Sprintf("Search for \"%s\" failed: %s", query, res.Error)
	}
	if len(res.Hits) == 0 {
		return fmt.Sprintf("No messages found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Messages matching \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Showing %d of %d match", len(res.Hits), res.TotalHits)
	if res.TotalHits != 1 {
		sb.WriteString("es")
	}
	sb.WriteString("\n\n")

	for i, h := range res.Hits {
		formatHit(&sb, i+1, h)
	}
	return sb.String()
}

func formatHit(sb *strings.Builder, num int, h store.Hit) {
	m := h.Message
	fmt.Fprintf(sb, "### %d. %s (score: %.2f)\n", num, m.Subject, h.Score)
	fmt.Fprintf(sb, "**From:** %s  \n", m.Sender)
	fmt.Fprintf(sb, "**To:** %s  \n", strings.Join(m.Recipients, ", "))
	if !m.Timestamp.IsZero() {
		fmt.Fprintf(sb, "**Date:** %s  \n", m.Timestamp.UTC().Format("2006-01-02 15:04:05Z"))
	}
	fmt.Fprintf(sb, "**Id:** `%s`\n\n", m.ID)
	fmt.Fprintf(sb, "%s\n\n---\n\n", snippet(m.Body))
}

// snippet truncates s to maxSnippetRunes on a rune boundary.
func snippet(s string) string {
	if utf8.RuneCountInString(s) <= maxSnippetRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxSnippetRunes]) + "…"
}

// ToSearchOutput converts a search result to the tool output schema.
func ToSearchOutput(res store.SearchResult) SearchOutput {
	out := SearchOutput{
		Hits:        make([]HitOutput, 0, len(res.Hits)),
		TotalHits:   res.TotalHits,
		Error:       res.Error,
		ParsedQuery: res.ParsedQuery,
	}
	for _, h := range res.Hits {
		msg := ToMessageOutput(h.Message)
		msg.Body = snippet(msg.Body)
		out.Hits = append(out.Hits, HitOutput{Score: h.Score, Message: msg})
	}
	return out
}

// ToMessageOutput converts a stored message to the tool output schema.
func ToMessageOutput(m store.Message) MessageOutput {
	recipients := m.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return MessageOutput{
		ID:         m.ID,
		Sender:     m.Sender,
		Recipients: recipients,
		Subject:    m.Subject,
		Body:       m.Body,
		Timestamp:  m.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// ToStatsOutput converts index statistics to the tool output schema.
func ToStatsOutput(s store.IndexStats) StatsOutput {
	return StatsOutput{
		NumDocs:     s.NumDocs,
		MaxDocs:     s.MaxDocs,
		NumSegments: s.NumSegments,
		IsOptimized: s.IsOptimized,
		Available:   s.Available(),
	}
}
