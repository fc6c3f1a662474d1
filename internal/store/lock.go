package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the write-lock marker kept inside the index directory.
const LockFileName = "write.lock"

// WriteLock is the cross-process marker that guards the index writer.
// The file outlives an unclean shutdown, but the OS releases the flock held
// on it, which is how a stale marker is told apart from a live one.
type WriteLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewWriteLock returns the write lock for the index directory dir.
func NewWriteLock(dir string) *WriteLock {
	lockPath := filepath.Join(dir, LockFileName)
	return &WriteLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Exists reports whether the marker file is present.
func (l *WriteLock) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Held reports whether a live process currently holds the lock.
// A marker that exists but is not held is stale.
func (l *WriteLock) Held() (bool, error) {
	if l.locked {
		return true, nil
	}
	if !l.Exists() {
		return false, nil
	}

	probe := flock.New(l.path)
	acquired, err := probe.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe write lock: %w", err)
	}
	if acquired {
		_ = probe.Unlock()
		return false, nil
	}
	return true, nil
}

// ClearStale removes the marker if it exists and no live process holds it.
// Returns true if a stale marker was removed.
func (l *WriteLock) ClearStale() (bool, error) {
	held, err := l.Held()
	if err != nil {
		return false, err
	}
	if held || !l.Exists() {
		return false, nil
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("remove stale write lock: %w", err)
	}
	return true, nil
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if another process holds it.
func (l *WriteLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return false, fmt.Errorf("create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire write lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an unlocked WriteLock.
func (l *WriteLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release write lock: %w", err)
	}
	return nil
}

// Path returns the path to the marker file.
func (l *WriteLock) Path() string {
	return l.path
}

// IsLocked returns true if this WriteLock holds the lock.
func (l *WriteLock) IsLocked() bool {
	return l.locked
}
