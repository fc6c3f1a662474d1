package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"
)

// Daemon ties a Server to its PID lock.
type Daemon struct {
	cfg     Config
	handler Handler
	server  *Server
	pidLock *PIDLock
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithHandler sets the handler that executes index operations.
func WithHandler(h Handler) Option {
	return func(d *Daemon) { d.handler = h }
}

// NewDaemon creates a daemon for cfg.
func NewDaemon(cfg Config, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := NewServer(cfg.SocketPath)
	if err != nil {
		return nil, err
	}
	srv.SetShutdownGracePeriod(cfg.ShutdownGracePeriod)

	d := &Daemon{
		cfg:     cfg,
		server:  srv,
		pidLock: NewPIDLock(cfg.PIDPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	srv.SetHandler(d.handler)
	return d, nil
}

// Ready is closed once the daemon accepts connections.
func (d *Daemon) Ready() <-chan struct{} {
	return d.server.Ready()
}

// Start takes the PID lock and serves until ctx is cancelled. It
// refuses to start when another daemon is alive.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}

	// A live daemon must not lose its socket to us.
	if NewClient(d.cfg).IsRunning() {
		return fmt.Errorf("%w on %s", ErrAlreadyRunning, d.cfg.SocketPath)
	}
	if err := d.pidLock.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := d.pidLock.Release(); err != nil {
			slog.Warn("pid_release_failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("daemon_started",
		slog.Int("pid", os.Getpid()),
		slog.String("socket", d.cfg.SocketPath))
	return d.server.ListenAndServe(ctx)
}

// Stop sends SIGTERM to the daemon holding cfg's PID lock and waits up
// to timeout for it to release the lock and its socket.
func Stop(cfg Config, timeout time.Duration) error {
	if !LockHeld(cfg.PIDPath) {
		// Left behind by a daemon that was killed.
		_ = os.Remove(cfg.PIDPath)
		return ErrNotRunning
	}
	if err := signalPID(cfg.PIDPath, syscall.SIGTERM); err != nil {
		return err
	}

	client := NewClient(Config{SocketPath: cfg.SocketPath, Timeout: time.Second})
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !LockHeld(cfg.PIDPath) && !client.IsRunning() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// ErrNotRunning is returned by Stop when no daemon is alive.
var ErrNotRunning = errors.New("daemon not running")
