// Package profiling captures CPU and heap profiles around a long-running
// operation such as an index rebuild.
package profiling

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"
)

// Profile file names written into the session directory.
const (
	CPUFile  = "cpu.pprof"
	HeapFile = "heap.pprof"
)

// Session is one profiling run. CPU sampling starts with Start; the heap
// snapshot is taken by Stop.
type Session struct {
	dir     string
	cpu     *os.File
	started time.Time
	stopped bool
}

// Start creates dir if needed and begins CPU profiling into it. Only one
// session can run per process because the runtime has one CPU profiler.
func Start(dir string) (*Session, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, CPUFile))
	if err != nil {
		return nil, fmt.Errorf("create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start CPU profile: %w", err)
	}
	return &Session{dir: dir, cpu: f, started: time.Now()}, nil
}

// Dir returns the directory profiles are written to.
func (s *Session) Dir() string { return s.dir }

// Stop ends CPU sampling and writes the heap profile. Calling it again is
// a no-op.
func (s *Session) Stop() error {
	if s.stopped {
		return nil
	}
	s.stopped = true

	pprof.StopCPUProfile()
	cpuErr := s.cpu.Close()
	heapErr := writeHeap(filepath.Join(s.dir, HeapFile))

	m := MemStats()
	slog.Info("profile_written",
		slog.String("dir", s.dir),
		slog.Duration("elapsed", time.Since(s.started)),
		slog.String("heap_alloc", humanize.IBytes(m.HeapAlloc)),
		slog.Uint64("num_gc", uint64(m.NumGC)))
	return errors.Join(cpuErr, heapErr)
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Live objects only.
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}
	return nil
}

// MemStats returns current memory statistics.
func MemStats() runtime.MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m
}
