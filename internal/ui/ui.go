// Package ui renders rebuild progress and index statistics in the terminal.
//
// Interactive terminals get a bubbletea view; pipes, CI and --plain get
// line-oriented text.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/msgindex/internal/store"
)

// Stage is a phase of a rebuild.
type Stage int

const (
	StageReading Stage = iota
	StageStaging
	StageCommitting
	StageComplete
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageReading:
		return "Reading"
	case StageStaging:
		return "Staging"
	case StageCommitting:
		return "Committing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Tag is the short label used in plain output.
func (s Stage) Tag() string {
	switch s {
	case StageReading:
		return "READ"
	case StageStaging:
		return "STAGE"
	case StageCommitting:
		return "COMMIT"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is a progress update.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Message string
}

// ErrorEvent is a problem reported during a rebuild.
type ErrorEvent struct {
	Item   string
	Err    error
	IsWarn bool
}

// CompletionStats summarizes a finished rebuild.
type CompletionStats struct {
	Indexed     int
	Skipped     int
	MboxSkipped int
	Recreate    bool
	Duration    time.Duration
}

// FromReport builds CompletionStats from a rebuild report.
func FromReport(r store.RebuildReport, mboxSkipped int) CompletionStats {
	return CompletionStats{
		Indexed:     r.Indexed,
		Skipped:     r.Skipped,
		MboxSkipped: mboxSkipped,
		Recreate:    r.Recreate,
		Duration:    r.Duration,
	}
}

// Renderer displays rebuild progress.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Title      string
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithForcePlain always selects plain output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables styling.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithTitle sets the header shown above the progress bar.
func WithTitle(title string) ConfigOption {
	return func(c *Config) { c.Title = title }
}

// NewConfig returns a Config writing to output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output, Title: "msgindex rebuild"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if DetectNoColor() {
		cfg.NoColor = true
	}
	return cfg
}

// NewRenderer picks the TUI for interactive terminals and plain text
// otherwise.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// ProgressFunc adapts a Renderer to the staging callback of a rebuild.
func ProgressFunc(r Renderer) store.ProgressFunc {
	return func(done, total int) {
		r.UpdateProgress(ProgressEvent{Stage: StageStaging, Current: done, Total: total})
	}
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

// DetectCI reports whether a common CI variable is set.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE"} {
		if _, ok := os.LookupEnv(v); ok {
			return true
		}
	}
	return false
}
