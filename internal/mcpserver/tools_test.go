package mcpserver

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"binder/internal/agent"
	"binder/internal/config"
	"binder/internal/excel"
	"binder/internal/ipc"
	"binder/internal/logging"
	"binder/internal/perfmon"
	"binder/internal/testsupport"
)

type fakeProbe struct{}

func (fakeProbe) Sample(context.Context) (perfmon.Sample, error) {
	return perfmon.Sample{CPUPercent: 10, MemoryPercent: 20, MemoryAvailableGB: 8}, nil
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text
}

// startTestAgent brings up an agent and IPC server on cfg's socket.
func startTestAgent(t *testing.T, cfg *config.Config, bridge *testsupport.FakeBridge) {
	t.Helper()

	a, err := agent.New(cfg, logging.NewNop(),
		agent.WithBridgeFactory(func(*config.Config, *slog.Logger) (excel.Bridge, bool, error) {
			return bridge, true, nil
		}),
		agent.WithLister(&testsupport.FakeLister{}),
		agent.WithProbe(fakeProbe{}))
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := a.Start(ctx); err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping MCP tool test: %v", err)
		}
		t.Fatalf("agent.Start: %v", err)
	}

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), a, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping MCP tool test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() { srv.Close() })
}

func TestWorkbooksToolWithAgent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	wbPath := filepath.Join(cfg.Paths.WorkspaceDir, "budget.xlsx")
	testsupport.WriteWorkbook(t, wbPath, testsupport.SheetSpec{Name: "Summary"})
	bridge := testsupport.NewFakeBridge(excel.WorkbookInfo{
		Name: "budget.xlsx", FullPath: wbPath, Saved: true, ActiveSheet: "Summary",
	})
	startTestAgent(t, cfg, bridge)

	result, err := workbooksHandler(cfg)(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("workbooks handler: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Found 1 workbook(s) open in Excel.") {
		t.Fatalf("unexpected summary: %s", text)
	}
	if !strings.Contains(text, `"name": "budget.xlsx"`) {
		t.Fatalf("expected workbook JSON, got: %s", text)
	}
}

func TestWorkbooksToolOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteWorkbook(t, filepath.Join(cfg.Paths.WorkspaceDir, "plan.xlsx"),
		testsupport.SheetSpec{Name: "Sheet1"})

	result, err := workbooksHandler(cfg)(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("workbooks handler: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "agent offline") {
		t.Fatalf("expected offline marker, got: %s", text)
	}
	if !strings.Contains(text, "plan.xlsx") {
		t.Fatalf("expected workspace workbook, got: %s", text)
	}
}

func TestLinksScanToolOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteWorkbook(t, filepath.Join(cfg.Paths.WorkspaceDir, "report.xlsx"), testsupport.SheetSpec{
		Name: "Data",
		Formulas: map[string]string{
			"B2": "'[Budget 2025.xlsx]Sheet1'!A1*2",
		},
	})

	result, err := linksScanHandler(cfg)(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("links scan handler: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "1 link(s) to 1 file(s) across 1 workbook(s)") {
		t.Fatalf("unexpected summary: %s", text)
	}
	if !strings.Contains(text, "Budget 2025.xlsx") {
		t.Fatalf("expected link target, got: %s", text)
	}
}

func TestSessionSaveToolWithAgent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	wbPath := filepath.Join(cfg.Paths.WorkspaceDir, "budget.xlsx")
	testsupport.WriteWorkbook(t, wbPath, testsupport.SheetSpec{Name: "Summary"})
	bridge := testsupport.NewFakeBridge(excel.WorkbookInfo{
		Name: "budget.xlsx", FullPath: wbPath, Saved: true,
	})
	startTestAgent(t, cfg, bridge)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"name": "daily"}
	result, err := sessionSaveHandler(cfg)(context.Background(), req)
	if err != nil {
		t.Fatalf("session save handler: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Session saved to") || !strings.Contains(text, "daily") {
		t.Fatalf("unexpected result: %s", text)
	}
}

func TestSessionSaveToolRequiresAgent(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	result, err := sessionSaveHandler(cfg)(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("session save handler: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result when agent is down")
	}
	if !strings.Contains(resultText(t, result), "agent not running") {
		t.Fatalf("unexpected error text: %s", resultText(t, result))
	}
}

func TestProcsHealthToolRequiresAgent(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	result, err := procsHealthHandler(cfg)(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("procs health handler: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result when agent is down")
	}
}

func TestWithRecovery(t *testing.T) {
	handler := withRecovery(func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		panic("boom")
	})
	result, err := handler(context.Background(), mcp.CallToolRequest{})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected recovered error, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result, got %#v", result)
	}
}
