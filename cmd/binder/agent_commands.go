package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"binder/internal/agentctl"
	"binder/internal/history"
)

func newAgentCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the binder agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := agentExecutable()
			if err != nil {
				return err
			}

			result, err := agentctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				agentLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Agent not running, launching...")
			}

			switch result.State {
			case agentctl.StartStateStarted:
				fmt.Fprintln(stdout, "Agent started")
			case agentctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Agent already running")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the binder agent (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := agentctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, agentctl.ErrAgentNotRunning) {
				fmt.Fprintln(stdout, "Agent is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping agent process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Agent stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the binder agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := agentExecutable()
			if err != nil {
				return err
			}

			result, err := agentctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				agentLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping agent process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Agent stopped")
			}
			fmt.Fprintln(stdout, "Agent restarted")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show agent, path, and run history status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			snapshot, err := agentctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Agent", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range agentStatusLines(snapshot, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Paths", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("Socket", statusInfo, snapshot.Agent.SocketPath, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Lock file", statusInfo, snapshot.Agent.LockPath, colorize))
			fmt.Fprintln(stdout, renderStatusLine("History DB", statusInfo, snapshot.Agent.HistoryDBPath, colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Notifications", colorize) {
				fmt.Fprintln(stdout, line)
			}
			notifyKind := statusWarn
			notifyMessage := "ntfy topic not configured"
			if snapshot.NotificationsConfigured {
				notifyKind = statusOK
				notifyMessage = "ntfy configured"
			}
			fmt.Fprintln(stdout, renderStatusLine("ntfy", notifyKind, notifyMessage, colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Runs", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := buildRunSummaryRows(snapshot)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No recorded runs")
				return nil
			}
			table := renderTable([]string{"Kind", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
			fmt.Fprintln(stdout, table)
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func agentStatusLines(snapshot *agentctl.StatusSnapshot, colorize bool) []string {
	if snapshot == nil || !snapshot.Agent.Running {
		return []string{renderStatusLine("Agent", statusWarn, "not running; start it with `binder start`", colorize)}
	}

	bridgeKind := statusWarn
	bridgeMessage := "workspace fallback (read-only)"
	if snapshot.Agent.LiveBridge {
		bridgeKind = statusOK
		bridgeMessage = "Excel COM"
	}

	return []string{
		renderStatusLine("Agent", statusOK, fmt.Sprintf("running (pid %d)", snapshot.Agent.PID), colorize),
		renderStatusLine("Bridge", bridgeKind, bridgeMessage, colorize),
		renderStatusLine("Open workbooks", statusInfo, strconv.Itoa(snapshot.Agent.OpenWorkbooks), colorize),
		renderStatusLine("Platform", statusInfo, snapshot.Agent.Platform, colorize),
	}
}

func buildRunSummaryRows(snapshot *agentctl.StatusSnapshot) [][]string {
	if snapshot == nil || !snapshot.HistoryAvailable || snapshot.History.Total == 0 {
		return nil
	}
	kinds := make([]string, 0, len(snapshot.History.ByKind))
	for kind := range snapshot.History.ByKind {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	rows := make([][]string, 0, len(kinds)+1)
	for _, kind := range kinds {
		rows = append(rows, []string{kind, strconv.Itoa(snapshot.History.ByKind[history.Kind(kind)])})
	}
	rows = append(rows, []string{"total", strconv.Itoa(snapshot.History.Total)})
	return rows
}

func agentExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func agentLaunchOptions(ctx *commandContext) agentctl.LaunchOptions {
	var opts agentctl.LaunchOptions
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
