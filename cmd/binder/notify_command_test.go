package main

import (
	"testing"
)

func TestNotifyTestCommandUnconfigured(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"notify", "test"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("notify test: %v", err)
	}
	requireContains(t, stdout, "ntfy topic not configured")
}
