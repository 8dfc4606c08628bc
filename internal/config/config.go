// Package config handles configuration loading, defaults and validation
// for the maptrack daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"maptrack/internal/ipc"
)

// Config holds the complete daemon configuration.
type Config struct {
	Log       LogSourceConfig `toml:"log" yaml:"log" json:"log"`
	Zones     ZonesConfig     `toml:"zones" yaml:"zones" json:"zones"`
	Snapshot  SnapshotConfig  `toml:"snapshot" yaml:"snapshot" json:"snapshot"`
	Valuation ValuationConfig `toml:"valuation" yaml:"valuation" json:"valuation"`
	Journal   JournalConfig   `toml:"journal" yaml:"journal" json:"journal"`
	Storage   StorageConfig   `toml:"storage" yaml:"storage" json:"storage"`
	IPC       IPCConfig       `toml:"ipc" yaml:"ipc" json:"ipc"`
	Notify    NotifyConfig    `toml:"notify" yaml:"notify" json:"notify"`
	Logging   LoggingConfig   `toml:"logging" yaml:"logging" json:"logging"`
}

// LogSourceConfig describes the client log being tailed.
type LogSourceConfig struct {
	// Path to the client log file.
	Path string `toml:"path" yaml:"path" json:"path"`
	// PollIntervalMs between scans.
	PollIntervalMs int `toml:"poll_interval_ms" yaml:"poll_interval_ms" json:"poll_interval_ms"`
	// ScanWindowBytes caps the bytes consumed per scan.
	ScanWindowBytes int64 `toml:"scan_window_bytes" yaml:"scan_window_bytes" json:"scan_window_bytes"`
	// FromStart replays the whole log on startup instead of tailing.
	FromStart bool `toml:"from_start" yaml:"from_start" json:"from_start"`
}

// ZonesConfig overrides the built-in zone classification tables. Empty
// slices keep the defaults.
type ZonesConfig struct {
	SafeCodes     []string `toml:"safe_codes" yaml:"safe_codes" json:"safe_codes"`
	SafePrefixes  []string `toml:"safe_prefixes" yaml:"safe_prefixes" json:"safe_prefixes"`
	TriggerCodes  []string `toml:"trigger_codes" yaml:"trigger_codes" json:"trigger_codes"`
	SafeTargets   []string `toml:"safe_targets" yaml:"safe_targets" json:"safe_targets"`
	SubMarkers    []string `toml:"sub_markers" yaml:"sub_markers" json:"sub_markers"`
	MapPrefixes   []string `toml:"map_prefixes" yaml:"map_prefixes" json:"map_prefixes"`
	IgnoreMarkers []string `toml:"ignore_markers" yaml:"ignore_markers" json:"ignore_markers"`
}

// SnapshotConfig configures the inventory source and rate limiter.
type SnapshotConfig struct {
	// SubjectID is the account being tracked.
	SubjectID string `toml:"subject_id" yaml:"subject_id" json:"subject_id"`
	// Credential is the session cookie value. Prefer the
	// MAPTRACK_CREDENTIAL environment variable over the config file.
	Credential string `toml:"credential" yaml:"credential" json:"credential"`
	// Endpoint is the inventory API URL.
	Endpoint string `toml:"endpoint" yaml:"endpoint" json:"endpoint"`
	// League scopes the inventory request.
	League string `toml:"league" yaml:"league" json:"league"`
	// MinGapSeconds is the global minimum gap between fetches.
	MinGapSeconds float64 `toml:"min_gap_seconds" yaml:"min_gap_seconds" json:"min_gap_seconds"`
	// TimeoutSeconds bounds a single fetch.
	TimeoutSeconds float64 `toml:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
}

// ValuationConfig configures the pricing service.
type ValuationConfig struct {
	Endpoint       string  `toml:"endpoint" yaml:"endpoint" json:"endpoint"`
	League         string  `toml:"league" yaml:"league" json:"league"`
	TimeoutSeconds float64 `toml:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
}

// JournalConfig configures the append-only JSONL journals.
type JournalConfig struct {
	RunsPath     string `toml:"runs_path" yaml:"runs_path" json:"runs_path"`
	SessionsPath string `toml:"sessions_path" yaml:"sessions_path" json:"sessions_path"`
	Sync         bool   `toml:"sync" yaml:"sync" json:"sync"`
}

// StorageConfig configures the optional SQLite mirror.
type StorageConfig struct {
	// Type is "sqlite" or "none".
	Type string `toml:"type" yaml:"type" json:"type"`
	Path string `toml:"path" yaml:"path" json:"path"`
}

// IPCConfig configures the control socket.
type IPCConfig struct {
	SocketPath string `toml:"socket_path" yaml:"socket_path" json:"socket_path"`
}

// NotifyConfig configures desktop notifications.
type NotifyConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled" json:"enabled"`
	AppName string `toml:"app_name" yaml:"app_name" json:"app_name"`
}

// LoggingConfig configures daemon logging.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" yaml:"level" json:"level"`
	// Format is text or json.
	Format string `toml:"format" yaml:"format" json:"format"`
	// Output is stderr, stdout or file.
	Output string `toml:"output" yaml:"output" json:"output"`
	// FilePath receives logs when Output is file.
	FilePath string `toml:"file_path" yaml:"file_path" json:"file_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := PlatformDataDir()
	return &Config{
		Log: LogSourceConfig{
			PollIntervalMs:  1000,
			ScanWindowBytes: 1 << 20,
		},
		Snapshot: SnapshotConfig{
			Endpoint:       "https://www.pathofexile.com/character-window/get-stash-items",
			League:         "Standard",
			MinGapSeconds:  2,
			TimeoutSeconds: 15,
		},
		Valuation: ValuationConfig{
			League:         "Standard",
			TimeoutSeconds: 10,
		},
		Journal: JournalConfig{
			RunsPath:     filepath.Join(dataDir, "runs.jsonl"),
			SessionsPath: filepath.Join(dataDir, "sessions.jsonl"),
		},
		Storage: StorageConfig{
			Type: "sqlite",
			Path: filepath.Join(dataDir, "maptrack.db"),
		},
		IPC: IPCConfig{
			SocketPath: ipc.DefaultSocketPath(),
		},
		Notify: NotifyConfig{
			Enabled: true,
			AppName: "maptrack",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// PollInterval returns the scan interval as a duration.
func (c *LogSourceConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// MinGap returns the snapshot rate-limit gap as a duration.
func (c *SnapshotConfig) MinGap() time.Duration {
	return time.Duration(c.MinGapSeconds * float64(time.Second))
}

// Timeout returns the fetch timeout as a duration.
func (c *SnapshotConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// Timeout returns the pricing timeout as a duration.
func (c *ValuationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// ApplyEnvOverrides lets the environment override secrets and paths that
// should not live in the config file.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("MAPTRACK_CREDENTIAL"); v != "" {
		c.Snapshot.Credential = v
	}
	if v := os.Getenv("MAPTRACK_LOG_PATH"); v != "" {
		c.Log.Path = v
	}
	if v := os.Getenv("MAPTRACK_SOCKET"); v != "" {
		c.IPC.SocketPath = v
	}
}

// Validate checks the configuration for unrecoverable mistakes. These are
// the only errors treated as fatal at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.Log.Path == "" {
		errs = append(errs, errors.New("log.path is required"))
	}
	if c.Log.PollIntervalMs <= 0 {
		errs = append(errs, errors.New("log.poll_interval_ms must be positive"))
	}
	if c.Log.ScanWindowBytes <= 0 {
		errs = append(errs, errors.New("log.scan_window_bytes must be positive"))
	}
	if c.Snapshot.SubjectID == "" {
		errs = append(errs, errors.New("snapshot.subject_id is required"))
	}
	if c.Snapshot.MinGapSeconds < 0 {
		errs = append(errs, errors.New("snapshot.min_gap_seconds must not be negative"))
	}
	switch c.Storage.Type {
	case "sqlite", "none":
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not sqlite or none", c.Storage.Type))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is invalid", c.Logging.Level))
	}
	if c.Storage.Type == "sqlite" && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required for sqlite"))
	}
	return errors.Join(errs...)
}
