package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/msgindex/internal/mailbox"
	"github.com/Aman-CERP/msgindex/internal/store"
)

// Rebuilder is the part of the index backend the watcher drives.
type Rebuilder interface {
	RebuildIndex(ctx context.Context, msgs []store.Message, recreate bool, progress store.ProgressFunc) (store.RebuildReport, error)
}

// SyncResult describes one re-import attempt.
type SyncResult struct {
	Report      store.RebuildReport
	MboxSkipped int
	Err         error
}

// Sync re-imports an mbox file into the index whenever it changes.
// Imports upsert by message id and never recreate the index.
type Sync struct {
	path    string
	backend Rebuilder
	opts    Options

	// ImportOnStart runs one import before waiting for changes.
	ImportOnStart bool

	// OnSync, if set, is called after every import attempt.
	OnSync func(SyncResult)

	// Mailbox options passed to the reader.
	Mailbox mailbox.Options

	syncs atomic.Int64
}

// NewSync creates a Sync for path.
func NewSync(path string, backend Rebuilder, opts Options) *Sync {
	return &Sync{path: path, backend: backend, opts: opts}
}

// Syncs returns how many imports have completed, successful or not.
func (s *Sync) Syncs() int64 { return s.syncs.Load() }

// Run watches until ctx is done. Cancellation is not an error.
func (s *Sync) Run(ctx context.Context) error {
	w, err := NewFileWatcher(s.path, s.opts)
	if err != nil {
		return err
	}

	if s.ImportOnStart {
		s.importOnce(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		for batch := range w.Events() {
			if removed(batch) {
				slog.Warn("mbox_removed", slog.String("path", w.Path()))
				continue
			}
			s.importOnce(gctx)
		}
		return nil
	})

	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Sync) importOnce(ctx context.Context) {
	start := time.Now()
	res := SyncResult{}
	defer func() {
		s.syncs.Add(1)
		if s.OnSync != nil {
			s.OnSync(res)
		}
	}()

	mb, err := mailbox.ReadFile(ctx, s.path, s.Mailbox)
	if err != nil {
		res.Err = err
		slog.Warn("mbox_sync_failed", slog.String("path", s.path), slog.String("error", err.Error()))
		return
	}
	res.MboxSkipped = mb.Skipped

	report, err := s.backend.RebuildIndex(ctx, mb.Messages, false, nil)
	res.Report = report
	if err != nil {
		res.Err = err
		slog.Warn("mbox_sync_failed", slog.String("path", s.path), slog.String("error", err.Error()))
		return
	}

	slog.Info("mbox_synced",
		slog.String("path", s.path),
		slog.Int("indexed", report.Indexed),
		slog.Int("skipped", report.Skipped+mb.Skipped),
		slog.Duration("elapsed", time.Since(start)))
}

// removed reports whether the batch leaves the file absent.
func removed(batch []FileEvent) bool {
	if len(batch) == 0 {
		return false
	}
	return batch[len(batch)-1].Removed()
}
