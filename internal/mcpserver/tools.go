package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"binder/internal/config"
	"binder/internal/excel"
	"binder/internal/ipc"
	"binder/internal/links"
	"binder/internal/logging"
)

var errAgentRequired = errors.New("agent not running; start it with `binder start`")

func workbooksTool() mcp.Tool {
	return mcp.NewTool("binder_workbooks",
		mcp.WithDescription("List the workbooks currently open in Excel, with save state and active sheet/cell. Lists the workspace directory when the agent is not running."),
	)
}

func workbooksHandler(cfg *config.Config) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := dialAgent(cfg)
		if err != nil {
			return toolError(err)
		}

		var infos []excel.WorkbookInfo
		source := "open in Excel"
		if client != nil {
			defer client.Close()
			resp, err := client.Workbooks()
			if err != nil {
				return toolError(err)
			}
			infos = resp.Workbooks
		} else {
			mgr, release, err := workspaceManager(cfg)
			if err != nil {
				return toolError(err)
			}
			defer release()
			infos, err = mgr.Workbooks(ctx)
			if err != nil {
				return toolError(err)
			}
			source = "in the workspace directory (agent offline)"
		}

		return renderResult("Open Workbooks",
			fmt.Sprintf("Found %d workbook(s) %s.", len(infos), source), infos)
	}
}

func linksScanTool() mcp.Tool {
	return mcp.NewTool("binder_links_scan",
		mcp.WithDescription("Scan workbooks for external links and group them by referenced file. Scans the workspace directory when the agent is not running."),
	)
}

func linksScanHandler(cfg *config.Config) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := dialAgent(cfg)
		if err != nil {
			return toolError(err)
		}

		var result *links.ScanResult
		if client != nil {
			defer client.Close()
			resp, err := client.LinksScan()
			if err != nil {
				return toolError(err)
			}
			result = &resp.Result
		} else {
			mgr, release, err := workspaceManager(cfg)
			if err != nil {
				return toolError(err)
			}
			defer release()
			result, err = links.NewScanner(mgr, logging.NewNop()).Scan(ctx)
			if err != nil {
				return toolError(err)
			}
		}

		summary := fmt.Sprintf("%d link(s) to %d file(s) across %d workbook(s) in %s.",
			result.Stats.TotalLinks, result.Stats.UniqueTargets, result.Stats.TotalWorkbooks,
			result.Duration().Round(time.Millisecond))
		if result.Stats.TotalLinks == 0 {
			summary = fmt.Sprintf("No external links found in %d workbook(s).", result.Stats.TotalWorkbooks)
		}
		return renderResult("External Link Scan", summary, result)
	}
}

func sessionSaveTool() mcp.Tool {
	return mcp.NewTool("binder_session_save",
		mcp.WithDescription("Snapshot the open workbooks into a named session file that `binder session load` restores later. Requires the agent."),
		mcp.WithString("name",
			mcp.Description("Base name for the session file (defaults to \"session\")"),
		),
	)
}

func sessionSaveHandler(cfg *config.Config) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := dialAgent(cfg)
		if err != nil {
			return toolError(err)
		}
		if client == nil {
			return toolError(errAgentRequired)
		}
		defer client.Close()

		resp, err := client.SessionSave(req.GetString("name", ""))
		if err != nil {
			return toolError(err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("# Session Saved\nSession saved to %s\n", resp.Path)), nil
	}
}

func procsHealthTool() mcp.Tool {
	return mcp.NewTool("binder_procs_health",
		mcp.WithDescription("Report Excel process health: totals, zombies, high-memory processes, and recommendations. Requires the agent."),
	)
}

func procsHealthHandler(cfg *config.Config) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := dialAgent(cfg)
		if err != nil {
			return toolError(err)
		}
		if client == nil {
			return toolError(errAgentRequired)
		}
		defer client.Close()

		resp, err := client.ProcsHealth()
		if err != nil {
			return toolError(err)
		}
		report := resp.Report
		return renderResult("Excel Process Health",
			fmt.Sprintf("%d process(es): %d zombie, %d high-memory.",
				report.Total, report.Zombies, report.HighMemory), report)
	}
}

// dialAgent connects to the agent socket. A nil client with nil error means
// the agent is down and the tool should fall back or refuse.
func dialAgent(cfg *config.Config) (*ipc.Client, error) {
	client, err := ipc.Dial(cfg.SocketPath())
	if err == nil {
		return client, nil
	}
	if agentDown(err) {
		return nil, nil
	}
	return nil, fmt.Errorf("connect to agent: %w", err)
}

func agentDown(err error) bool {
	return errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		os.IsNotExist(err)
}

// workspaceManager builds a read-only manager over paths.workspace_dir for
// offline listing and scanning. The caller must invoke the release func.
func workspaceManager(cfg *config.Config) (*excel.Manager, func(), error) {
	bridge, err := excel.NewWorkspaceBridge(cfg.Paths.WorkspaceDir, logging.NewNop())
	if err != nil {
		return nil, nil, fmt.Errorf("open workspace %s: %w", cfg.Paths.WorkspaceDir, err)
	}
	return excel.NewManager(bridge, cfg, logging.NewNop(), nil), bridge.Release, nil
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

// renderResult builds the tool output: a heading, a one-line summary, and the
// payload as fenced JSON.
func renderResult(heading, summary string, payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return toolError(fmt.Errorf("encode result: %w", err))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n%s\n", heading, summary)
	sb.WriteString("```json\n")
	sb.Write(data)
	sb.WriteString("\n```\n")
	return mcp.NewToolResultText(sb.String()), nil
}
