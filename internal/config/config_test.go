package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"binder/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogs := filepath.Join(tempHome, ".local", "share", "binder", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if cfg.Paths.SessionDir != filepath.Join(tempHome, ".local", "share", "binder", "sessions") {
		t.Fatalf("unexpected session dir: %q", cfg.Paths.SessionDir)
	}
	if cfg.Paths.WorkspaceDir != "" {
		t.Fatalf("expected workspace dir empty by default, got %q", cfg.Paths.WorkspaceDir)
	}
	if cfg.Excel.ProcessName != "excel" {
		t.Fatalf("unexpected excel process name: %q", cfg.Excel.ProcessName)
	}
	if cfg.Excel.SaveRetries != 3 || cfg.Excel.SaveRetryDelayMS != 100 {
		t.Fatalf("unexpected save retry defaults: %d/%d", cfg.Excel.SaveRetries, cfg.Excel.SaveRetryDelayMS)
	}
	if !cfg.Excel.OpenReadOnlyFallback {
		t.Fatal("expected read-only fallback enabled by default")
	}
	if cfg.Links.CheckDays != 14 {
		t.Fatalf("unexpected check days: %d", cfg.Links.CheckDays)
	}
	if cfg.Links.ShowFullPath {
		t.Fatal("expected full paths disabled by default")
	}
	if !cfg.Links.SaveRunLog || !cfg.Links.SaveScanSummary {
		t.Fatal("expected run log and scan summary persistence enabled by default")
	}
	if !cfg.Monitor.Enabled {
		t.Fatal("expected monitor enabled by default")
	}
	if cfg.Monitor.OperationHistory != 1000 || cfg.Monitor.SystemHistory != 100 {
		t.Fatalf("unexpected monitor history sizes: %d/%d", cfg.Monitor.OperationHistory, cfg.Monitor.SystemHistory)
	}
	if cfg.Procs.MemoryWarningMB != 500 {
		t.Fatalf("unexpected proc memory warning: %d", cfg.Procs.MemoryWarningMB)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %s/%s", cfg.Logging.Format, cfg.Logging.Level)
	}
	if cfg.Notifications.NtfyServer != "https://ntfy.sh" {
		t.Fatalf("unexpected ntfy server: %q", cfg.Notifications.NtfyServer)
	}
	if got := cfg.HistoryDBPath(); got != filepath.Join(wantLogs, "history.db") {
		t.Fatalf("unexpected history db path: %q", got)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.SessionDir, cfg.Paths.ReportDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "binder.toml")

	type payload struct {
		Excel struct {
			ProcessName string `toml:"process_name"`
			SaveRetries int    `toml:"save_retries"`
		} `toml:"excel"`
		Links struct {
			CheckDays    int  `toml:"check_days"`
			ShowFullPath bool `toml:"show_full_path"`
		} `toml:"links"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Excel.ProcessName = "EXCEL.EXE"
	custom.Excel.SaveRetries = 5
	custom.Links.CheckDays = 30
	custom.Links.ShowFullPath = true
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Excel.ProcessName != "excel.exe" {
		t.Fatalf("expected lowercased process name, got %q", cfg.Excel.ProcessName)
	}
	if cfg.Excel.SaveRetries != 5 {
		t.Fatalf("expected save retries 5, got %d", cfg.Excel.SaveRetries)
	}
	if cfg.Links.CheckDays != 30 {
		t.Fatalf("expected check days 30, got %d", cfg.Links.CheckDays)
	}
	if !cfg.Links.ShowFullPath {
		t.Fatal("expected full paths enabled via file")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
}

func TestNtfyTopicFallsBackToEnv(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("BINDER_NTFY_TOPIC", "binder-alerts")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "binder-alerts" {
		t.Fatalf("expected topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "workspace_dir") {
		t.Fatalf("sample config missing workspace_dir key: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Links.CheckDays != 14 {
		t.Fatalf("expected sample check days 14, got %d", cfg.Links.CheckDays)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Links.CheckDays = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero check days")
	}

	cfg = config.Default()
	cfg.Excel.SaveRetries = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive save retries")
	}

	cfg = config.Default()
	cfg.Monitor.CPUCriticalPercent = cfg.Monitor.CPUWarningPercent
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when cpu critical <= warning")
	}

	cfg = config.Default()
	cfg.Monitor.VerySlowOperationSeconds = cfg.Monitor.SlowOperationSeconds
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when very slow <= slow threshold")
	}

	cfg = config.Default()
	cfg.Monitor.Enabled = false
	cfg.Monitor.SampleIntervalSeconds = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected disabled monitor to skip validation, got %v", err)
	}

	cfg = config.Default()
	cfg.Procs.CountCritical = cfg.Procs.CountWarning - 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when proc count critical < warning")
	}

	cfg = config.Default()
	cfg.Notifications.NtfyTopic = "topic"
	cfg.Notifications.NtfyServer = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when topic set without server")
	}
}
