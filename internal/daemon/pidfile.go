package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another daemon owns the PID lock or
// answers on the socket.
var ErrAlreadyRunning = errors.New("daemon already running")

// ErrNoPID is returned by ReadPID when no PID file exists.
var ErrNoPID = errors.New("no PID file")

// PIDLock marks daemon ownership. The owner holds an advisory lock on
// "<path>.lock" for its whole lifetime and records its PID in path so other
// processes can signal it. The kernel drops the lock when the owner dies,
// so a crashed daemon never blocks the next one.
type PIDLock struct {
	path string
	lock *flock.Flock
}

// NewPIDLock returns an unheld lock for the PID file at path.
func NewPIDLock(path string) *PIDLock {
	return &PIDLock{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the PID file path.
func (l *PIDLock) Path() string { return l.path }

// Acquire takes the lock and writes the current PID.
func (l *PIDLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}

	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", l.lock.Path(), err)
	}
	if !ok {
		if pid, err := ReadPID(l.path); err == nil {
			return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}
		return ErrAlreadyRunning
	}

	if err := writeFileAtomic(l.path, strconv.Itoa(os.Getpid())); err != nil {
		_ = l.lock.Unlock()
		return err
	}
	return nil
}

// Release removes the PID file and drops the lock. Releasing an unheld
// lock does nothing.
func (l *PIDLock) Release() error {
	if !l.lock.Locked() {
		return nil
	}
	var errs []error
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, fmt.Errorf("remove PID file: %w", err))
	}
	if err := l.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("unlock PID file: %w", err))
	}
	return errors.Join(errs...)
}

// LockHeld reports whether some process currently holds the PID lock for
// path. It probes by briefly taking the lock itself.
func LockHeld(path string) bool {
	probe := flock.New(path + ".lock")
	ok, err := probe.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = probe.Unlock()
		return false
	}
	return true
}

// ReadPID returns the PID recorded at path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNoPID
	}
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("PID file %s holds %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// signalPID delivers sig to the process recorded at path.
func signalPID(path string, sig syscall.Signal) error {
	pid, err := ReadPID(path)
	if err != nil {
		return err
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return nil
}

func writeFileAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write PID file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write PID file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}
