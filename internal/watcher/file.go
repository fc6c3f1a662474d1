package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch modes reported by FileWatcher.Mode.
const (
	ModeNotify  = "fsnotify"
	ModePolling = "polling"
)

// ErrAlreadyRunning is returned when Run is called a second time.
var ErrAlreadyRunning = errors.New("watcher already running")

// FileWatcher emits debounced change batches for a single file.
type FileWatcher struct {
	path    string
	opts    Options
	events  chan []FileEvent
	mode    atomic.Value
	started atomic.Bool
}

// NewFileWatcher creates a watcher for path. The file itself need not
// exist yet.
func NewFileWatcher(path string, opts Options) (*FileWatcher, error) {
	if path == "" {
		return nil, errors.New("watch path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}
	opts = opts.withDefaults()
	w := &FileWatcher{
		path:   abs,
		opts:   opts,
		events: make(chan []FileEvent, opts.EventBufferSize),
	}
	w.mode.Store("")
	return w, nil
}

// Path returns the absolute path being watched.
func (w *FileWatcher) Path() string { return w.path }

// Mode returns ModeNotify or ModePolling once Run has started, and "" before.
func (w *FileWatcher) Mode() string { return w.mode.Load().(string) }

// Events returns the channel of debounced batches. It is closed when Run
// returns.
func (w *FileWatcher) Events() <-chan []FileEvent { return w.events }

// Run watches until ctx is done. It returns ctx.Err() on cancellation.
func (w *FileWatcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(w.events)

	deb := NewDebouncer(w.opts.DebounceWindow)
	defer deb.Stop()

	var (
		fsEvents <-chan fsnotify.Event
		fsErrors <-chan error
		tick     <-chan time.Time
		poll     *poller
	)

	if !w.opts.ForcePolling {
		fw, err := w.notifier()
		if err == nil {
			defer func() { _ = fw.Close() }()
			fsEvents, fsErrors = fw.Events, fw.Errors
			w.mode.Store(ModeNotify)
		} else {
			slog.Warn("watch_polling_fallback",
				slog.String("path", w.path),
				slog.String("error", err.Error()))
		}
	}
	if fsEvents == nil {
		p, err := newPoller(w.path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", w.path, err)
		}
		poll = p
		ticker := time.NewTicker(w.opts.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
		w.mode.Store(ModePolling)
	}

	slog.Info("watch_started",
		slog.String("path", w.path),
		slog.String("mode", w.Mode()),
		slog.Duration("debounce", w.opts.DebounceWindow))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fsEvents:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}
			if fe, match := w.translate(ev); match {
				deb.Add(fe)
			}

		case err, ok := <-fsErrors:
			if ok {
				slog.Warn("watch_error", slog.String("path", w.path), slog.String("error", err.Error()))
			}

		case now := <-tick:
			fe, changed, err := poll.check(now)
			if err != nil {
				slog.Warn("watch_stat_failed", slog.String("path", w.path), slog.String("error", err.Error()))
				continue
			}
			if changed {
				deb.Add(fe)
			}

		case batch := <-deb.Output():
			select {
			case w.events <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// notifier watches the parent directory so that a rename over the target
// is reported as a create of the target.
func (w *FileWatcher) notifier() (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	return fw, nil
}

func (w *FileWatcher) translate(ev fsnotify.Event) (FileEvent, bool) {
	if filepath.Clean(ev.Name) != w.path {
		return FileEvent{}, false
	}
	fe := FileEvent{Path: w.path, Timestamp: time.Now()}
	switch {
	case ev.Has(fsnotify.Create):
		fe.Operation = OpCreate
	case ev.Has(fsnotify.Write):
		fe.Operation = OpModify
	case ev.Has(fsnotify.Remove):
		fe.Operation = OpDelete
	case ev.Has(fsnotify.Rename):
		fe.Operation = OpRename
	default:
		return FileEvent{}, false
	}
	return fe, true
}
