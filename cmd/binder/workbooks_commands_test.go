package main

import (
	"strings"
	"testing"
)

func TestWorkbooksListCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"workbooks", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("workbooks list: %v", err)
	}
	requireContains(t, stdout, "budget.xlsx")
	requireContains(t, stdout, "Summary")
}

func TestWorkbooksListJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"workbooks", "list", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("workbooks list --json: %v", err)
	}
	requireContains(t, stdout, `"name": "budget.xlsx"`)
}

func TestWorkbooksSaveCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"workbooks", "save"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("workbooks save: %v", err)
	}
	requireContains(t, stdout, "Saved budget.xlsx")
}

func TestWorkbooksCloseCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"workbooks", "close", "budget.xlsx"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("workbooks close: %v", err)
	}
	requireContains(t, stdout, "Closed 1 workbook(s)")
}

func TestWorkbooksListAgentDownHint(t *testing.T) {
	_, socket, configPath := offlineCLIEnv(t)

	_, _, err := runCLI(t, []string{"workbooks", "list"}, socket, configPath)
	if err == nil {
		t.Fatal("expected error when agent socket is missing")
	}
	if !strings.Contains(err.Error(), "start the agent with `binder start`") {
		t.Fatalf("unexpected error: %v", err)
	}
}
