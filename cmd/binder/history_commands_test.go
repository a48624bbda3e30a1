package main

import (
	"encoding/json"
	"strings"
	"testing"

	"binder/internal/history"
)

func TestHistoryCommandsAfterRun(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"session", "save", "daily"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("session save: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"history", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, stdout, "session-save")
	requireContains(t, stdout, "ok")

	stdout, _, err = runCLI(t, []string{"history", "stats"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history stats: %v", err)
	}
	requireContains(t, stdout, "Total: 1 (ok 1, partial 0, error 0)")

	stdout, _, err = runCLI(t, []string{"history", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history clear: %v", err)
	}
	requireContains(t, stdout, "Removed 1 run record(s)")
}

func TestHistoryShowCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"session", "save", "daily"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("session save: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"history", "list", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history list --json: %v", err)
	}
	var runs []history.RunRecord
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
		t.Fatalf("decode history list: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}

	stdout, _, err = runCLI(t, []string{"history", "show", runs[0].RunID}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, stdout, "Run:       "+runs[0].RunID)
	requireContains(t, stdout, "Kind:      session-save")
	requireContains(t, stdout, "Status:    ok")
}

func TestHistoryShowUnknownRun(t *testing.T) {
	_, socket, configPath := offlineCLIEnv(t)

	_, _, err := runCLI(t, []string{"history", "show", "does-not-exist"}, socket, configPath)
	if err == nil || !strings.Contains(err.Error(), "no run record") {
		t.Fatalf("expected missing run error, got %v", err)
	}
}

func TestHistoryListKindFilter(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"session", "save", "daily"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("session save: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"history", "list", "--kind", "scan"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("history list --kind scan: %v", err)
	}
	requireContains(t, stdout, "No recorded runs")
}

func TestHistoryListUnknownKindOffline(t *testing.T) {
	_, socket, configPath := offlineCLIEnv(t)

	_, _, err := runCLI(t, []string{"history", "list", "--kind", "bogus"}, socket, configPath)
	if err == nil || !strings.Contains(err.Error(), "unknown run kind") {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}

func TestHistoryStatsOfflineEmpty(t *testing.T) {
	_, socket, configPath := offlineCLIEnv(t)

	stdout, _, err := runCLI(t, []string{"history", "stats"}, socket, configPath)
	if err != nil {
		t.Fatalf("history stats offline: %v", err)
	}
	requireContains(t, stdout, "No recorded runs")
}
