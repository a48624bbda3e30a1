package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"binder/internal/agent"
	"binder/internal/config"
	"binder/internal/excel"
	"binder/internal/ipc"
	"binder/internal/logging"
	"binder/internal/perfmon"
	"binder/internal/procs"
	"binder/internal/testsupport"
)

type cliFakeProbe struct{}

func (cliFakeProbe) Sample(context.Context) (perfmon.Sample, error) {
	return perfmon.Sample{CPUPercent: 12, MemoryPercent: 34, MemoryAvailableGB: 8}, nil
}

type cliTestEnv struct {
	cfg        *config.Config
	bridge     *testsupport.FakeBridge
	proc       *testsupport.FakeProc
	agent      *agent.Agent
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)

	wbPath := filepath.Join(cfg.Paths.WorkspaceDir, "budget.xlsx")
	testsupport.WriteWorkbook(t, wbPath, testsupport.SheetSpec{Name: "Summary"})
	bridge := testsupport.NewFakeBridge(excel.WorkbookInfo{
		Name:        "budget.xlsx",
		FullPath:    wbPath,
		Saved:       true,
		ActiveSheet: "Summary",
		ActiveCell:  "B2",
	})
	bridge.Cells["budget.xlsx"] = []excel.CellFormula{{
		Workbook: "budget.xlsx",
		Sheet:    "Summary",
		Cell:     "C3",
		Formula:  "='[actuals.xlsx]Data'!A1*2",
	}}

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	proc := &testsupport.FakeProc{
		Pid:            4242,
		ProcName:       cfg.Excel.ProcessName,
		Statuses:       []string{"running"},
		Created:        time.Now().Add(-time.Hour),
		Memory:         120,
		Alive:          true,
		DieOnTerminate: true,
	}

	a, err := agent.New(cfg, logging.NewNop(),
		agent.WithBridgeFactory(func(*config.Config, *slog.Logger) (excel.Bridge, bool, error) {
			return bridge, true, nil
		}),
		agent.WithLister(&testsupport.FakeLister{Procs: []procs.Proc{proc}}),
		agent.WithProbe(cliFakeProbe{}),
	)
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		a.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("cannot lock files in this environment: %v", err)
		}
		t.Fatalf("agent.Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socketPath, a, logging.NewNop())
	if err != nil {
		cancel()
		a.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("cannot create unix sockets in this environment: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		bridge:     bridge,
		proc:       proc,
		agent:      a,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		a.Close()
	})

	return env
}

// offlineCLIEnv prepares a config file and workspace without a running
// agent; the returned socket path points at nothing.
func offlineCLIEnv(t *testing.T) (cfg *config.Config, socketPath, configPath string) {
	t.Helper()

	cfg = testsupport.NewConfig(t)
	configPath = filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	socketPath = filepath.Join(testsupport.BaseDir(cfg), "absent.sock")
	return cfg, socketPath, configPath
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
log_dir = %q
session_dir = %q
report_dir = %q
workspace_dir = %q

[excel]
save_retry_delay_ms = 1

[monitor]
sample_interval_seconds = 1
`,
		cfg.Paths.LogDir,
		cfg.Paths.SessionDir,
		cfg.Paths.ReportDir,
		cfg.Paths.WorkspaceDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
