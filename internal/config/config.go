package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir       string `toml:"log_dir"`
	SessionDir   string `toml:"session_dir"`
	ReportDir    string `toml:"report_dir"`
	WorkspaceDir string `toml:"workspace_dir"`
}

// Excel contains workbook automation settings.
type Excel struct {
	ProcessName          string `toml:"process_name"`
	SaveRetries          int    `toml:"save_retries"`
	SaveRetryDelayMS     int    `toml:"save_retry_delay_ms"`
	OpenReadOnlyFallback bool   `toml:"open_read_only_fallback"`
}

// Links contains external link scan and report settings.
type Links struct {
	CheckDays        int  `toml:"check_days"`
	ShowFullPath     bool `toml:"show_full_path"`
	ShowLink         bool `toml:"show_link"`
	ShowLastModified bool `toml:"show_last_modified"`
	ShowStatus       bool `toml:"show_status"`
	SaveRunLog       bool `toml:"save_run_log"`
	SaveScanSummary  bool `toml:"save_scan_summary"`
}

// Monitor contains performance monitor settings.
type Monitor struct {
	Enabled                  bool    `toml:"enabled"`
	SampleIntervalSeconds    int     `toml:"sample_interval_seconds"`
	OperationHistory         int     `toml:"operation_history"`
	SystemHistory            int     `toml:"system_history"`
	CPUWarningPercent        float64 `toml:"cpu_warning"`
	CPUCriticalPercent       float64 `toml:"cpu_critical"`
	MemoryWarningPercent     float64 `toml:"memory_warning"`
	MemoryCriticalPercent    float64 `toml:"memory_critical"`
	SlowOperationSeconds     int     `toml:"slow_operation_seconds"`
	VerySlowOperationSeconds int     `toml:"very_slow_operation_seconds"`
}

// Procs contains Excel process supervision settings.
type Procs struct {
	MemoryWarningMB       int `toml:"memory_warning_mb"`
	CountWarning          int `toml:"count_warning"`
	CountCritical         int `toml:"count_critical"`
	TerminateWaitSeconds  int `toml:"terminate_wait_seconds"`
	ForceCloseWaitSeconds int `toml:"force_close_wait_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	NtfyServer     string `toml:"ntfy_server"`
	RequestTimeout int    `toml:"request_timeout"`
	LinkReports    bool   `toml:"link_reports"`
	ProcessAlerts  bool   `toml:"process_alerts"`
	Errors         bool   `toml:"errors"`
}

// Config encapsulates all configuration values for Binder.
//
// Configuration sections by subsystem:
//   - Paths: log, session, report, and offline workspace directories
//   - Excel: workbook automation behavior (save retries, read-only fallback)
//   - Links: external link scan window and report columns
//   - Monitor: operation timing and system resource sampling
//   - Procs: Excel process supervision thresholds
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Excel         Excel         `toml:"excel"`
	Links         Links         `toml:"links"`
	Monitor       Monitor       `toml:"monitor"`
	Procs         Procs         `toml:"procs"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/binder/config.toml")
}

// SocketPath returns the agent IPC socket location under the log directory.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "binder.sock")
}

// PIDFilePath returns the agent pid file location under the log directory.
func (c *Config) PIDFilePath() string {
	return filepath.Join(c.Paths.LogDir, "binder.pid")
}

// LockFilePath returns the single-instance lock location under the log directory.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.LogDir, "binder.lock")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/binder/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("binder.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for agent operation.
// WorkspaceDir is created on a best-effort basis so the agent can run when
// the offline scan root lives on storage that is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.SessionDir, c.Paths.ReportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.WorkspaceDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.WorkspaceDir, 0o755)
	}
	return nil
}

// HistoryDBPath returns the location of the run history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.LogDir, "history.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
