// Package output formats CLI results: status lines, messages, search hits
// and JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Aman-CERP/msgindex/internal/store"
)

// snippetRunes caps the body preview printed per hit.
const snippetRunes = 160

// Writer prints CLI output. Write errors are ignored; stdout is best
// effort.
type Writer struct {
	out io.Writer
}

// New returns a Writer on out.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints msg after an icon, or indented when icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon == "" {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
}

// Statusf is Status with formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a check-marked line.
func (w *Writer) Success(msg string) { w.Status("✓", msg) }

// Successf is Success with formatting.
func (w *Writer) Successf(format string, args ...any) { w.Success(fmt.Sprintf(format, args...)) }

// Warning prints a warning line.
func (w *Writer) Warning(msg string) { w.Status("!", msg) }

// Warningf is Warning with formatting.
func (w *Writer) Warningf(format string, args ...any) { w.Warning(fmt.Sprintf(format, args...)) }

// Error prints an error line.
func (w *Writer) Error(msg string) { w.Status("✗", msg) }

// Errorf is Error with formatting.
func (w *Writer) Errorf(format string, args ...any) { w.Error(fmt.Sprintf(format, args...)) }

// Newline prints an empty line.
func (w *Writer) Newline() { _, _ = fmt.Fprintln(w.out) }

// Code prints content indented between blank lines.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// JSON prints v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Message prints one message in full.
func (w *Writer) Message(m store.Message) {
	_, _ = fmt.Fprintf(w.out, "Id:      %s\n", m.ID)
	_, _ = fmt.Fprintf(w.out, "From:    %s\n", m.Sender)
	_, _ = fmt.Fprintf(w.out, "To:      %s\n", strings.Join(m.Recipients, ", "))
	_, _ = fmt.Fprintf(w.out, "Date:    %s\n", m.Timestamp.UTC().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w.out, "Subject: %s\n", m.Subject)
	_, _ = fmt.Fprintln(w.out)
	_, _ = fmt.Fprintln(w.out, m.Body)
}

// SearchResult prints hits as a numbered list with a body preview. A
// failed search prints its error instead.
func (w *Writer) SearchResult(query string, res store.SearchResult) {
	if res.Failed() {
		w.Errorf("search %q failed: %s", query, res.Error)
		return
	}
	if len(res.Hits) == 0 {
		w.Statusf("·", "no messages match %q", query)
		return
	}

	_, _ = fmt.Fprintf(w.out, "%d of %d match(es) for %q\n\n", len(res.Hits), res.TotalHits, query)
	for i, h := range res.Hits {
		m := h.Message
		_, _ = fmt.Fprintf(w.out, "%2d. %s  [%.3f]\n", i+1, m.Subject, h.Score)
		_, _ = fmt.Fprintf(w.out, "    %s  %s  %s\n", m.Timestamp.UTC().Format("2006-01-02 15:04"), m.Sender, m.ID)
		if s := Snippet(m.Body, snippetRunes); s != "" {
			_, _ = fmt.Fprintf(w.out, "    %s\n", s)
		}
		_, _ = fmt.Fprintln(w.out)
	}
}

// Snippet flattens whitespace in body and cuts it to at most n runes,
// marking a cut with an ellipsis.
func Snippet(body string, n int) string {
	flat := strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(flat) <= n {
		return flat
	}
	runes := []rune(flat)
	return strings.TrimRight(string(runes[:n]), " ") + "…"
}
