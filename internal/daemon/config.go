// Package daemon keeps the message index open in a background process and
// serves index operations as JSON-RPC 2.0 over a Unix socket. Because the
// index admits a single writer, CLI commands route through the daemon when
// it is running instead of opening the index themselves.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/msgindex/internal/config"
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	PIDPath string

	// Timeout is the maximum duration for one client-daemon exchange.
	Timeout time.Duration

	// ShutdownGracePeriod is the time to wait for in-flight requests on
	// shutdown.
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns a Config rooted at the msgindex home directory.
func DefaultConfig() Config {
	home := config.HomeDir()
	return Config{
		SocketPath:          filepath.Join(home, "daemon.sock"),
		PIDPath:             filepath.Join(home, "daemon.pid"),
		Timeout:             30 * time.Second,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// FromConfig derives the daemon settings from the application config.
func FromConfig(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if cfg.Daemon.SocketPath != "" {
		c.SocketPath = cfg.Daemon.SocketPath
	}
	if cfg.Daemon.PIDPath != "" {
		c.PIDPath = cfg.Daemon.PIDPath
	}
	if d := cfg.DaemonTimeout(); d > 0 {
		c.Timeout = d
	}
	return c
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod < 0 {
		return fmt.Errorf("shutdown grace period cannot be negative")
	}
	return nil
}

// EnsureDir creates the directories for the socket and PID files.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	pidDir := filepath.Dir(c.PIDPath)
	if pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0o755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}
	return nil
}
