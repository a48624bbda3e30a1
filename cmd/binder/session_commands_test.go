package main

import (
	"os"
	"path/filepath"
	"testing"
)

func savedSessionPath(t *testing.T, dir string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "daily_*.xlsx"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one saved session, got %v (err %v)", matches, err)
	}
	return matches[0]
}

func TestSessionSaveLoadCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"session", "save", "daily"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("session save: %v", err)
	}
	requireContains(t, stdout, "Session saved to")

	path := savedSessionPath(t, env.cfg.Paths.SessionDir)

	stdout, _, err = runCLI(t, []string{"session", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("session list: %v", err)
	}
	requireContains(t, stdout, "daily")

	stdout, _, err = runCLI(t, []string{"session", "load", path, "--force"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("session load: %v", err)
	}
	requireContains(t, stdout, "Restored session: 1 opened, 0 skipped, 0 failed")
}

func TestSessionExportCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"session", "save", "daily"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("session save: %v", err)
	}
	source := savedSessionPath(t, env.cfg.Paths.SessionDir)
	dest := filepath.Join(env.cfg.Paths.ReportDir, "handoff.xlsx")

	stdout, _, err := runCLI(t, []string{"session", "export", source, dest}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("session export: %v", err)
	}
	requireContains(t, stdout, "Exported session to")
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("export file missing: %v", err)
	}
}

func TestSessionListOffline(t *testing.T) {
	_, socket, configPath := offlineCLIEnv(t)

	stdout, _, err := runCLI(t, []string{"session", "list"}, socket, configPath)
	if err != nil {
		t.Fatalf("session list offline: %v", err)
	}
	requireContains(t, stdout, "No sessions saved")
}
