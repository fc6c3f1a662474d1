// Package config loads msgindex configuration from YAML files and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	msgerrors "github.com/Aman-CERP/msgindex/internal/errors"
)

// ProjectFileName is the per-directory configuration file.
const ProjectFileName = ".msgindex.yaml"

// CurrentVersion is the configuration schema version written by `config init`.
const CurrentVersion = 1

// Config is the complete msgindex configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Index     IndexConfig     `yaml:"index" json:"index"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Daemon    DaemonConfig    `yaml:"daemon" json:"daemon"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Watch     WatchConfig     `yaml:"watch" json:"watch"`
}

// IndexConfig locates the index and controls first-run seeding.
type IndexConfig struct {
	// Path is the index directory. Default: ~/.msgindex/index
	Path string `yaml:"path" json:"path"`
	// SeedSamples rebuilds an empty index from the built-in samples on
	// startup. Default: true
	SeedSamples bool `yaml:"seed_samples" json:"seed_samples"`
}

// SearchConfig bounds the number of hits per search.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`
}

// DaemonConfig configures the background server.
type DaemonConfig struct {
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	PIDPath    string `yaml:"pid_path" json:"pid_path"`
	// Timeout bounds a single client request, e.g. "30s".
	Timeout string `yaml:"timeout" json:"timeout"`
}

// LoggingConfig configures the rotating JSON log.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// TelemetryConfig configures local query telemetry.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	DBPath  string `yaml:"db_path" json:"db_path"`
}

// WatchConfig configures mbox watching in `serve --watch`.
type WatchConfig struct {
	MboxPath string `yaml:"mbox_path" json:"mbox_path"`
	Debounce string `yaml:"debounce" json:"debounce"`
}

// HomeDir returns the msgindex data directory: $MSGINDEX_HOME if set,
// otherwise ~/.msgindex.
func HomeDir() string {
	if v := os.Getenv("MSGINDEX_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".msgindex")
	}
	return filepath.Join(home, ".msgindex")
}

// NewConfig creates a Config with defaults rooted at HomeDir.
func NewConfig() *Config {
	home := HomeDir()
	return &Config{
		Version: CurrentVersion,
		Index: IndexConfig{
			Path:        filepath.Join(home, "index"),
			SeedSamples: true,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		Daemon: DaemonConfig{
			SocketPath: filepath.Join(home, "daemon.sock"),
			PIDPath:    filepath.Join(home, "daemon.pid"),
			Timeout:    "30s",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
			DBPath:  filepath.Join(home, "telemetry.db"),
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/msgindex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/msgindex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "msgindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "msgindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "msgindex", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the working directory dir, in order of
// increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/msgindex/config.yaml)
//  3. Project config (.msgindex.yaml in dir)
//  4. Environment variables (MSGINDEX_*)
//
// The result is validated; any failure is a ConfigInvalid error.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if path := filepath.Join(dir, ProjectFileName); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadYAML decodes path over the current values. Keys absent from the file
// keep their current value; unknown keys are rejected.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return msgerrors.ConfigError("failed to read config file", err).WithDetail("path", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return msgerrors.ConfigError("failed to parse config file", err).
			WithDetail("path", path).
			WithSuggestion("Check the file against `msgindex config show` output")
	}
	return nil
}

// applyEnvOverrides applies MSGINDEX_* environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("MSGINDEX_INDEX_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv("MSGINDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("MSGINDEX_SOCKET"); v != "" {
		c.Daemon.SocketPath = v
	}
	if v := os.Getenv("MSGINDEX_DEFAULT_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return msgerrors.ConfigError("MSGINDEX_DEFAULT_LIMIT must be an integer", err)
		}
		c.Search.DefaultLimit = n
	}
	if v := os.Getenv("MSGINDEX_MAX_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return msgerrors.ConfigError("MSGINDEX_MAX_LIMIT must be an integer", err)
		}
		c.Search.MaxLimit = n
	}
	if v := os.Getenv("MSGINDEX_TELEMETRY"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return msgerrors.ConfigError("MSGINDEX_TELEMETRY must be a boolean", err)
		}
		c.Telemetry.Enabled = enabled
	}
	return nil
}

// expandPaths resolves a leading "~/" in configured paths.
func (c *Config) expandPaths() {
	for _, p := range []*string{&c.Index.Path, &c.Daemon.SocketPath, &c.Daemon.PIDPath, &c.Telemetry.DBPath, &c.Watch.MboxPath} {
		*p = expandHome(*p)
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return msgerrors.ConfigError(fmt.Sprintf(format, args...), nil)
	}

	if strings.TrimSpace(c.Index.Path) == "" {
		return invalid("index.path cannot be empty")
	}
	if c.Search.MaxLimit < 1 || c.Search.MaxLimit > 1000 {
		return invalid("search.max_limit must be between 1 and 1000, got %d", c.Search.MaxLimit)
	}
	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return invalid("search.default_limit must be between 1 and max_limit (%d), got %d",
			c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	if c.Daemon.SocketPath == "" {
		return invalid("daemon.socket_path cannot be empty")
	}
	if c.Daemon.PIDPath == "" {
		return invalid("daemon.pid_path cannot be empty")
	}
	if d, err := time.ParseDuration(c.Daemon.Timeout); err != nil || d <= 0 {
		return invalid("daemon.timeout must be a positive duration, got %q", c.Daemon.Timeout)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB <= 0 {
		return invalid("logging.max_size_mb must be positive, got %d", c.Logging.MaxSizeMB)
	}
	if c.Logging.MaxFiles <= 0 {
		return invalid("logging.max_files must be positive, got %d", c.Logging.MaxFiles)
	}

	if c.Telemetry.Enabled && c.Telemetry.DBPath == "" {
		return invalid("telemetry.db_path is required when telemetry is enabled")
	}
	if d, err := time.ParseDuration(c.Watch.Debounce); err != nil || d < 0 {
		return invalid("watch.debounce must be a non-negative duration, got %q", c.Watch.Debounce)
	}
	return nil
}

// DaemonTimeout returns daemon.timeout as a duration.
func (c *Config) DaemonTimeout() time.Duration {
	d, err := time.ParseDuration(c.Daemon.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// WatchDebounce returns watch.debounce as a duration.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// YAML renders the configuration.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// WriteYAML writes the configuration to path, creating its directory.
func (c *Config) WriteYAML(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
