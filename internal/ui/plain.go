package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per update.
type PlainRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	lastPct  int
	lastTag  Stage
	problems int
}

// NewPlainRenderer returns a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output, lastPct: -1, lastTag: -1}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error { return nil }

// UpdateProgress prints when the stage changes or progress crosses another
// ten percent, so large imports do not flood logs.
func (r *PlainRenderer) UpdateProgress(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ev.Total <= 0 {
		if ev.Message != "" {
			_, _ = fmt.Fprintf(r.out, "[%s] %s\n", ev.Stage.Tag(), ev.Message)
		}
		r.lastTag = ev.Stage
		return
	}

	pct := ev.Current * 100 / ev.Total
	if ev.Stage == r.lastTag && pct/10 == r.lastPct/10 && ev.Current != ev.Total {
		return
	}
	r.lastTag, r.lastPct = ev.Stage, pct

	line := fmt.Sprintf("[%s] %d/%d", ev.Stage.Tag(), ev.Current, ev.Total)
	if ev.Message != "" {
		line += " - " + ev.Message
	}
	_, _ = fmt.Fprintln(r.out, line)
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(ev ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.problems++

	prefix := "ERROR"
	if ev.IsWarn {
		prefix = "WARN"
	}
	if ev.Item != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, ev.Item, ev.Err)
		return
	}
	_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, ev.Err)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.out, summaryLine(stats))
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error { return nil }

func summaryLine(s CompletionStats) string {
	mode := "upsert"
	if s.Recreate {
		mode = "recreate"
	}
	line := fmt.Sprintf("Complete: %d indexed, %d skipped in %s (%s)",
		s.Indexed, s.Skipped+s.MboxSkipped, s.Duration.Round(time.Millisecond), mode)
	if s.MboxSkipped > 0 {
		line += fmt.Sprintf("; %d unreadable mbox entries", s.MboxSkipped)
	}
	return line
}

var _ Renderer = (*PlainRenderer)(nil)
