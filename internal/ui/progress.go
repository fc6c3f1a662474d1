package ui

import (
	"sync"
	"time"
)

// etaSmoothing weights a fresh ETA estimate against the previous one.
const etaSmoothing = 0.3

// ProgressTracker holds rebuild progress for the TUI. Safe for concurrent
// use.
type ProgressTracker struct {
	mu         sync.Mutex
	stage      Stage
	current    int
	total      int
	message    string
	start      time.Time
	stageStart time.Time
	lastETA    time.Duration
	warnings   int
	errors     int
	now        func() time.Time
}

// ProgressStats is a snapshot of a tracker.
type ProgressStats struct {
	Stage    Stage
	Current  int
	Total    int
	Message  string
	Progress float64
	Rate     float64
	ETA      time.Duration
	Warnings int
	Errors   int
}

// NewProgressTracker returns a tracker starting in StageReading.
func NewProgressTracker() *ProgressTracker {
	return newTrackerAt(time.Now)
}

func newTrackerAt(now func() time.Time) *ProgressTracker {
	t := now()
	return &ProgressTracker{stage: StageReading, start: t, stageStart: t, now: now}
}

// Apply records a progress event, resetting counters on a stage change.
func (p *ProgressTracker) Apply(ev ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev.Stage != p.stage {
		p.stage = ev.Stage
		p.stageStart = p.now()
		p.lastETA = 0
	}
	p.current, p.total = ev.Current, ev.Total
	if ev.Message != "" {
		p.message = ev.Message
	}
}

// AddError counts an error or warning.
func (p *ProgressTracker) AddError(ev ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev.IsWarn {
		p.warnings++
	} else {
		p.errors++
	}
}

// Elapsed is the time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now().Sub(p.start)
}

// Stats returns a snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := ProgressStats{
		Stage:    p.stage,
		Current:  p.current,
		Total:    p.total,
		Message:  p.message,
		Warnings: p.warnings,
		Errors:   p.errors,
	}
	if p.total > 0 {
		s.Progress = min(float64(p.current)/float64(p.total), 1)
	}
	if secs := p.now().Sub(p.stageStart).Seconds(); secs > 0 {
		s.Rate = float64(p.current) / secs
	}
	s.ETA = p.etaLocked(s.Progress)
	return s
}

func (p *ProgressTracker) etaLocked(progress float64) time.Duration {
	if progress <= 0 || progress >= 1 {
		return 0
	}
	elapsed := p.now().Sub(p.stageStart)
	raw := time.Duration(float64(elapsed)/progress) - elapsed
	if raw < 0 {
		raw = 0
	}
	if p.lastETA == 0 {
		p.lastETA = raw
		return raw
	}
	p.lastETA = time.Duration(etaSmoothing*float64(raw) + (1-etaSmoothing)*float64(p.lastETA))
	return p.lastETA
}
