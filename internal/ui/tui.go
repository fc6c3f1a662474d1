package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer shows rebuild progress with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	tracker *ProgressTracker
	model   *rebuildModel
	program *tea.Program
	done    chan struct{}
}

// NewTUIRenderer fails when the output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, errors.New("output is not a terminal")
	}
	tracker := NewProgressTracker()
	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   newRebuildModel(tracker, cfg.Title, GetStyles(cfg.NoColor)),
		done:    make(chan struct{}),
	}, nil
}

// Start launches the bubbletea program in the background.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		return nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(ev ProgressEvent) {
	r.tracker.Apply(ev)
	r.send(refreshMsg{})
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(ev ErrorEvent) {
	r.tracker.AddError(ev)
	r.send(refreshMsg{})
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.tracker.Apply(ProgressEvent{Stage: StageComplete})
	r.send(completeMsg(stats))
}

// Stop quits the program and waits briefly for it to restore the terminal.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p == nil {
		return nil
	}
	p.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

type refreshMsg struct{}
type completeMsg CompletionStats

// rebuildModel is the bubbletea model for a rebuild.
type rebuildModel struct {
	tracker  *ProgressTracker
	title    string
	styles   Styles
	spinner  spinner.Model
	bar      progress.Model
	width    int
	done     bool
	canceled bool
	stats    CompletionStats
}

func newRebuildModel(tracker *ProgressTracker, title string, styles Styles) *rebuildModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Active

	return &rebuildModel{
		tracker: tracker,
		title:   title,
		styles:  styles,
		spinner: s,
		bar: progress.New(
			progress.WithSolidFill(ColorAccent),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		width: 80,
	}
}

func (m *rebuildModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *rebuildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.canceled = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-24, 20)
	case completeMsg:
		m.done = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *rebuildModel) View() string {
	if m.canceled {
		return "Cancelled.\n"
	}
	if m.done {
		return m.renderComplete()
	}

	st := m.tracker.Stats()
	lines := []string{m.renderStages(st.Stage), ""}

	if st.Total > 0 {
		lines = append(lines,
			fmt.Sprintf("%s  %s", m.bar.ViewAs(st.Progress), m.styles.Active.Render(fmt.Sprintf("%3.0f%%", st.Progress*100))),
			m.styles.Label.Render(fmt.Sprintf("%d / %d messages", st.Current, st.Total)),
		)
		meta := fmt.Sprintf("%.0f msg/s", st.Rate)
		if st.ETA > 0 {
			meta += "  ETA " + formatDuration(st.ETA)
		}
		lines = append(lines, m.styles.Dim.Render(meta))
	} else {
		label := st.Stage.String() + "..."
		if st.Message != "" {
			label = st.Message
		}
		lines = append(lines, m.spinner.View()+" "+label)
	}

	if st.Warnings > 0 || st.Errors > 0 {
		lines = append(lines, "", m.styles.Warning.Render(
			fmt.Sprintf("%d warning(s), %d error(s)", st.Warnings, st.Errors)))
	}

	panel := m.styles.Panel.Width(max(m.width-4, 40)).Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, m.styles.Header.Render(m.title), panel) + "\n"
}

func (m *rebuildModel) renderStages(current Stage) string {
	stages := []Stage{StageReading, StageStaging, StageCommitting}
	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		switch {
		case s < current:
			parts = append(parts, m.styles.Success.Render("● "+s.String()))
		case s == current:
			parts = append(parts, m.styles.Active.Render(m.spinner.View()+" "+s.String()))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+s.String()))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *rebuildModel) renderComplete() string {
	s := m.stats
	mode := "upsert"
	if s.Recreate {
		mode = "recreate"
	}
	lines := []string{
		m.styles.Success.Render("✓ Rebuild complete"),
		"",
		fmt.Sprintf("%s  %d", m.styles.Label.Render("Indexed: "), s.Indexed),
		fmt.Sprintf("%s  %d", m.styles.Label.Render("Skipped: "), s.Skipped+s.MboxSkipped),
		fmt.Sprintf("%s  %s", m.styles.Label.Render("Mode:    "), mode),
		fmt.Sprintf("%s  %s", m.styles.Label.Render("Duration:"), formatDuration(s.Duration)),
	}
	return m.styles.Panel.Width(max(m.width-4, 40)).Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration renders d compactly: 850ms, 12s, 3m 4s, 1h 2m.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Round(time.Second).Seconds()))
	case d < time.Hour:
		d = d.Round(time.Second)
		if s := int(d.Seconds()) % 60; s != 0 {
			return fmt.Sprintf("%dm %ds", int(d.Minutes()), s)
		}
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

var _ Renderer = (*TUIRenderer)(nil)
