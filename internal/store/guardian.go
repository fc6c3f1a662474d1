package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch/mergeplan"

	msgerrors "github.com/Aman-CERP/msgindex/internal/errors"
)

// metaFileName marks a directory as a created index.
const metaFileName = "index_meta.json"

// deletePageSize bounds how many document ids are read per page when
// clearing the index.
const deletePageSize = 1000

// ErrNotReady is returned to readers when no index is open.
var ErrNotReady = errors.New("index not ready")

// State is the lifecycle state of a Guardian.
type State int

const (
	// StateUninitialized means no writer has been opened yet.
	StateUninitialized State = iota
	// StateActive means the writer is open and holds the write lock.
	StateActive
	// StateDisposed means the writer was released. It cannot be reopened.
	StateDisposed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Guardian owns the single writable handle to the message index.
//
// mu serializes initialization and every mutation including its commit.
// stateMu protects the handle itself: readers hold it shared for the
// duration of a read, and only Open and Dispose take it exclusively.
// Readers never touch mu.
type Guardian struct {
	path string

	mu sync.Mutex

	stateMu sync.RWMutex
	state   State
	index   bleve.Index
	lock    *WriteLock
}

// NewGuardian returns an uninitialized guardian for the index directory at
// path. No I/O happens until Open or the first mutation.
func NewGuardian(path string) *Guardian {
	return &Guardian{path: path}
}

// Path returns the index directory.
func (g *Guardian) Path() string {
	return g.path
}

// State returns the current lifecycle state.
func (g *Guardian) State() State {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	return g.state
}

// Open performs the startup check: it recovers a stale write lock, acquires
// the lock and opens or creates the index. Failing to do so returns an
// IndexUnavailable error, which callers must treat as fatal.
func (g *Guardian) Open() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ensureActiveLocked()
}

// Add indexes a new message and commits.
func (g *Guardian) Add(msg Message) error {
	return g.mutate("add", func(idx bleve.Index) error {
		batch := idx.NewBatch()
		if err := batch.Index(msg.ID, Encode(msg)); err != nil {
			return err
		}
		return idx.Batch(batch)
	})
}

// Update replaces the document with the given id, or adds it when none
// exists. The replacement is a single batch, so readers see either the old
// or the new version.
func (g *Guardian) Update(id string, msg Message) error {
	msg.ID = id
	return g.mutate("update", func(idx bleve.Index) error {
		batch := idx.NewBatch()
		batch.Delete(id)
		if err := batch.Index(id, Encode(msg)); err != nil {
			return err
		}
		return idx.Batch(batch)
	})
}

// Delete removes the document with the given id. Deleting an id that does
// not exist succeeds.
func (g *Guardian) Delete(id string) error {
	return g.mutate("delete", func(idx bleve.Index) error {
		batch := idx.NewBatch()
		batch.Delete(id)
		return idx.Batch(batch)
	})
}

// Rebuild re-indexes msgs. With recreate set, deletions of every existing
// document are staged in the same batch, so readers see either the old or
// the new document set. A message that cannot be staged is logged and
// skipped; everything staged is committed together at the end.
func (g *Guardian) Rebuild(msgs []Message, recreate bool, progress ProgressFunc) (RebuildReport, error) {
	report := RebuildReport{Recreate: recreate}
	start := time.Now()

	err := g.mutate("rebuild", func(idx bleve.Index) error {
		batch := idx.NewBatch()
		if recreate {
			if err := stageDeleteAll(idx, batch); err != nil {
				return fmt.Errorf("clear index: %w", err)
			}
		}

		for i, msg := range msgs {
			if err := batch.Index(msg.ID, Encode(msg)); err != nil {
				slog.Warn("rebuild_message_skipped",
					slog.String("id", msg.ID),
					slog.String("error", err.Error()))
				report.Skipped++
			} else {
				report.Indexed++
			}
			if progress != nil {
				progress(i+1, len(msgs))
			}
		}
		return idx.Batch(batch)
	})

	report.Duration = time.Since(start)
	if err != nil {
		return report, err
	}

	slog.Info("index_rebuilt",
		slog.Int("indexed", report.Indexed),
		slog.Int("skipped", report.Skipped),
		slog.Bool("recreate", recreate),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// forceMerger is implemented by the scorch engine.
type forceMerger interface {
	ForceMerge(ctx context.Context, mo *mergeplan.MergePlanOptions) error
}

// Optimize merges the index down to a single segment. It holds the
// mutation lock for its whole duration and cannot be cancelled.
func (g *Guardian) Optimize() error {
	return g.mutate("optimize", func(idx bleve.Index) error {
		adv, err := idx.Advanced()
		if err != nil {
			return fmt.Errorf("access engine: %w", err)
		}
		merger, ok := adv.(forceMerger)
		if !ok {
			return fmt.Errorf("engine %T does not support force merge", adv)
		}

		start := time.Now()
		opts := mergeplan.SingleSegmentMergePlanOptions
		if err := merger.ForceMerge(context.Background(), &opts); err != nil {
			return err
		}
		slog.Info("index_optimized", slog.Duration("duration", time.Since(start)))
		return nil
	})
}

// Dispose releases the index and the write lock. It is idempotent and
// waits for any in-flight mutation and reads to finish.
func (g *Guardian) Dispose() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stateMu.Lock()
	defer g.stateMu.Unlock()

	if g.state == StateDisposed {
		return nil
	}
	wasActive := g.state == StateActive
	g.state = StateDisposed
	if !wasActive {
		return nil
	}

	var errs []error
	if err := g.index.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close index: %w", err))
	}
	if err := g.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	g.index = nil

	slog.Info("index_disposed", slog.String("path", g.path))
	return errors.Join(errs...)
}

// Read runs fn against the open index without taking the mutation lock.
// It returns ErrNotReady if the index was never opened and the disposed
// error once the guardian has been disposed.
func (g *Guardian) Read(fn func(idx bleve.Index) error) error {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()

	switch g.state {
	case StateActive:
		return fn(g.index)
	case StateDisposed:
		return msgerrors.ErrDisposed
	default:
		return ErrNotReady
	}
}

// mutate runs op under the mutation lock, opening the index first if needed.
// Engine failures are reported as IndexWrite errors.
func (g *Guardian) mutate(name string, op func(idx bleve.Index) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.ensureActiveLocked(); err != nil {
		return err
	}

	if err := op(g.index); err != nil {
		slog.Error("index_write_failed",
			slog.String("op", name),
			slog.String("error", err.Error()))
		return msgerrors.IndexWriteError(fmt.Sprintf("%s failed", name), err)
	}
	return nil
}

// ensureActiveLocked transitions Uninitialized -> Active. Callers hold mu.
func (g *Guardian) ensureActiveLocked() error {
	switch g.State() {
	case StateActive:
		return nil
	case StateDisposed:
		return msgerrors.ErrDisposed
	}

	idx, lock, err := openIndex(g.path)
	if err != nil {
		return err
	}

	g.stateMu.Lock()
	g.index = idx
	g.lock = lock
	g.state = StateActive
	g.stateMu.Unlock()
	return nil
}

// openIndex clears a stale write lock, acquires the lock and opens or
// creates the index at path.
func openIndex(path string) (bleve.Index, *WriteLock, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, nil, msgerrors.IndexUnavailableError("cannot create index directory", err).
			WithDetail("path", path)
	}

	lock := NewWriteLock(path)
	cleared, err := lock.ClearStale()
	if err != nil {
		return nil, nil, msgerrors.IndexUnavailableError("cannot inspect write lock", err).
			WithDetail("path", lock.Path())
	}
	if cleared {
		slog.Warn("stale_lock_cleared", slog.String("path", lock.Path()))
	}

	acquired, err := lock.TryLock()
	if err != nil {
		return nil, nil, msgerrors.IndexUnavailableError("cannot acquire write lock", err).
			WithDetail("path", lock.Path())
	}
	if !acquired {
		return nil, nil, msgerrors.IndexUnavailableError("write lock is held by another process", nil).
			WithDetail("path", lock.Path())
	}

	idx, err := openOrCreate(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, nil, msgerrors.IndexUnavailableError("cannot open index", err).
			WithDetail("path", path)
	}

	count, _ := idx.DocCount()
	slog.Info("index_opened",
		slog.String("path", path),
		slog.Uint64("docs", count))
	return idx, lock, nil
}

// openOrCreate opens the index at path, creating it when no index exists.
// A corrupt index is cleared and recreated.
func openOrCreate(path string) (bleve.Index, error) {
	if !IndexExists(path) {
		if err := validateIndexIntegrity(path); err != nil {
			slog.Warn("index_corrupted",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if err := resetIndexDir(path); err != nil {
				return nil, err
			}
		}
		idx, err := bleve.New(path, newIndexMapping())
		if err == nil {
			slog.Info("index_created", slog.String("path", path))
		}
		return idx, err
	}

	idx, err := bleve.Open(path)
	if err != nil && isCorruptionError(err) {
		slog.Warn("index_open_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if err := resetIndexDir(path); err != nil {
			return nil, err
		}
		return bleve.New(path, newIndexMapping())
	}
	return idx, err
}

// IndexExists reports whether an index has been created at path.
func IndexExists(path string) bool {
	info, err := os.Stat(filepath.Join(path, metaFileName))
	return err == nil && info.Size() > 0
}

// validateIndexIntegrity checks a directory that has no usable metadata.
// Leftover engine files without metadata indicate an interrupted create.
func validateIndexIntegrity(path string) error {
	metaPath := filepath.Join(path, metaFileName)
	if info, err := os.Stat(metaPath); err == nil {
		if info.Size() == 0 {
			return fmt.Errorf("%s is empty", metaFileName)
		}
		data, err := os.ReadFile(metaPath)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", metaFileName, err)
		}
		var meta map[string]any
		if err := json.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("%s is corrupt: %w", metaFileName, err)
		}
		return nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.Name() != LockFileName {
			return fmt.Errorf("%s missing but %s present", metaFileName, e.Name())
		}
	}
	return nil
}

// resetIndexDir removes everything in path except the write lock.
func resetIndexDir(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read index directory: %w", err)
	}
	for _, e := range entries {
		if e.Name() == LockFileName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(path, e.Name())); err != nil {
			return fmt.Errorf("clear corrupted index: %w", err)
		}
	}
	slog.Info("index_cleared",
		slog.String("path", path),
		slog.String("reason", "corruption detected, rebuild required"))
	return nil
}

// isCorruptionError checks if an open error indicates on-disk corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, bleve.ErrorIndexMetaCorrupt) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment")
}

// stageDeleteAll adds a deletion of every current document to batch.
// Staged messages added afterwards with the same id replace the deletion.
func stageDeleteAll(idx bleve.Index, batch *bleve.Batch) error {
	for from := 0; ; from += deletePageSize {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), deletePageSize, from, false)
		req.SortBy([]string{"_id"})
		res, err := idx.Search(req)
		if err != nil {
			return err
		}
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if len(res.Hits) < deletePageSize {
			return nil
		}
	}
}
