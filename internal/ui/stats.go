package ui

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Aman-CERP/msgindex/internal/store"
)

// StatsView is what `msgindex stats` shows.
type StatsView struct {
	IndexPath string           `json:"index_path,omitempty"`
	State     string           `json:"state,omitempty"`
	Backend   string           `json:"backend"`
	Stats     store.IndexStats `json:"stats"`
}

// StatsRenderer prints a StatsView.
type StatsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatsRenderer returns a renderer writing to out.
func NewStatsRenderer(out io.Writer, noColor bool) *StatsRenderer {
	return &StatsRenderer{out: out, styles: GetStyles(noColor || DetectNoColor())}
}

// Render writes a human-readable report.
func (r *StatsRenderer) Render(v StatsView) error {
	w := r.out
	_, _ = fmt.Fprintln(w, r.styles.Header.Render("Index statistics"))
	_, _ = fmt.Fprintln(w)
	if v.IndexPath != "" {
		_, _ = fmt.Fprintf(w, "  Path:        %s\n", v.IndexPath)
	}
	if v.State != "" {
		_, _ = fmt.Fprintf(w, "  State:       %s\n", v.State)
	}
	_, _ = fmt.Fprintf(w, "  Backend:     %s\n", v.Backend)

	if !v.Stats.Available() {
		_, _ = fmt.Fprintf(w, "  Stats:       %s\n", r.styles.Error.Render("unavailable"))
		return nil
	}

	optimized := r.styles.Warning.Render("no")
	if v.Stats.IsOptimized {
		optimized = r.styles.Success.Render("yes")
	}
	_, _ = fmt.Fprintf(w, "  Documents:   %d\n", v.Stats.NumDocs)
	_, _ = fmt.Fprintf(w, "  Max docs:    %d\n", v.Stats.MaxDocs)
	_, _ = fmt.Fprintf(w, "  Segments:    %d\n", v.Stats.NumSegments)
	_, _ = fmt.Fprintf(w, "  Optimized:   %s\n", optimized)
	return nil
}

// RenderJSON writes v as indented JSON.
func (r *StatsRenderer) RenderJSON(v StatsView) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
