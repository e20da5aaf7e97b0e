// Package config handles Opsdesk configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for Opsdesk.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// API settings
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Sync settings
	Sync SyncConfig `yaml:"sync" mapstructure:"sync"`

	// Snapshot settings
	Snapshot SnapshotConfig `yaml:"snapshot" mapstructure:"snapshot"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// GlobalConfig contains global Opsdesk settings.
type GlobalConfig struct {
	// DataDir is where Opsdesk stores its data (default: ~/.local/share/opsdesk).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/opsdesk).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// APIConfig contains dashboard API settings.
type APIConfig struct {
	// BaseURL is the dashboard API root, e.g. https://ops.example.com.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// SessionPath is the session token file path (default: ConfigDir/session.yaml).
	SessionPath string `yaml:"session_path" mapstructure:"session_path"`

	// Timeout applies to one-shot requests. Polling requests run without a
	// deadline so a slow server degrades to a late refresh, not an error.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SyncConfig contains refresh cadence settings.
type SyncConfig struct {
	// PollInterval is how often open views re-fetch from the server.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// SearchDebounce is how long contact search waits after the last keystroke.
	SearchDebounce time.Duration `yaml:"search_debounce" mapstructure:"search_debounce"`

	// SearchLimit caps contact search results.
	SearchLimit int `yaml:"search_limit" mapstructure:"search_limit"`

	// PageSize is the conversation list page size.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
}

// SnapshotConfig contains local conversation cache settings.
type SnapshotConfig struct {
	// Path is the SQLite snapshot file path (default: DataDir/snapshot.db).
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeoutMs is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// Theme is the color theme (default, dark, light).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// ShowTimestamps shows timestamps in the UI.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`

	// CompactMode uses a more compact layout.
	CompactMode bool `yaml:"compact_mode" mapstructure:"compact_mode"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "opsdesk"),
			ConfigDir: filepath.Join(homeDir, ".config", "opsdesk"),
		},
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			PollInterval:   10 * time.Second,
			SearchDebounce: 300 * time.Millisecond,
			SearchLimit:    5,
			PageSize:       50,
		},
		Snapshot: SnapshotConfig{
			Path:          "", // Will be set to DataDir/snapshot.db
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		TUI: TUIConfig{
			Theme:          "default",
			ShowTimestamps: true,
			CompactMode:    false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL: %q", c.API.BaseURL)
	}

	if c.Sync.PollInterval < time.Second {
		return fmt.Errorf("sync.poll_interval must be at least 1s")
	}
	if c.Sync.SearchDebounce < 50*time.Millisecond {
		return fmt.Errorf("sync.search_debounce must be at least 50ms")
	}
	if c.Sync.SearchLimit < 1 {
		return fmt.Errorf("sync.search_limit must be at least 1")
	}
	if c.Sync.PageSize < 1 {
		return fmt.Errorf("sync.page_size must be at least 1")
	}

	if c.Snapshot.BusyTimeoutMs < 0 {
		return fmt.Errorf("snapshot.busy_timeout_ms must not be negative")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// SnapshotPath returns the full snapshot database path.
func (c *Config) SnapshotPath() string {
	if c.Snapshot.Path != "" {
		return c.Snapshot.Path
	}
	return filepath.Join(c.Global.DataDir, "snapshot.db")
}

// SessionPath returns the full session token file path.
func (c *Config) SessionPath() string {
	if c.API.SessionPath != "" {
		return c.API.SessionPath
	}
	return filepath.Join(c.Global.ConfigDir, "session.yaml")
}
