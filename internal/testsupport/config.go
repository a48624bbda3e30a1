package testsupport

import (
	"path/filepath"
	"testing"

	"binder/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Save retry delays are shortened so verified-save tests stay fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SessionDir = filepath.Join(base, "sessions")
	cfgVal.Paths.ReportDir = filepath.Join(base, "reports")
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfgVal.Excel.SaveRetryDelayMS = 1
	cfgVal.Monitor.SampleIntervalSeconds = 1

	builder := &configBuilder{t: t, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithCheckDays overrides the link verification window.
func WithCheckDays(days int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Links.CheckDays = days
	}
}

// WithSaveRetries overrides the verified-save attempt count.
func WithSaveRetries(retries int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Excel.SaveRetries = retries
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
