package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"binder/internal/ipc"
	"binder/internal/perfmon"
)

func newPerfCommand(ctx *commandContext) *cobra.Command {
	perfCmd := &cobra.Command{
		Use:   "perf",
		Short: "Performance monitoring",
	}

	perfCmd.AddCommand(newPerfReportCommand(ctx))

	return perfCmd
}

func newPerfReportCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show operation timings, resource pressure, and alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PerfReport()
				if err != nil {
					return err
				}
				report := resp.Report
				if asJSON {
					return writeJSON(cmd, report)
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				if report.System != nil {
					for _, line := range renderSectionHeader("System", colorize) {
						fmt.Fprintln(stdout, line)
					}
					fmt.Fprintln(stdout, renderStatusLine("CPU", resourceKind(report.System.CPU.Status),
						fmt.Sprintf("%.1f%% (avg %.1f%%)", report.System.CPU.Current, report.System.CPU.Average), colorize))
					fmt.Fprintln(stdout, renderStatusLine("Memory", resourceKind(report.System.Memory.Status),
						fmt.Sprintf("%.1f%% (avg %.1f%%, %.1f GB free)",
							report.System.Memory.Current, report.System.Memory.Average, report.System.MemoryAvailableGB), colorize))
					fmt.Fprintln(stdout)
				}

				for _, line := range renderSectionHeader("Operations", colorize) {
					fmt.Fprintln(stdout, line)
				}
				if report.Overall.Count == 0 {
					fmt.Fprintln(stdout, "No operations recorded")
				} else {
					table := renderTable(
						[]string{"Operation", "Count", "Failures", "Avg", "Max"},
						buildOperationRows(report),
						[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
					)
					fmt.Fprintln(stdout, table)
				}

				if len(report.Alerts) > 0 {
					for _, line := range renderSectionHeader("Alerts", colorize) {
						fmt.Fprintln(stdout, line)
					}
					for _, alert := range report.Alerts {
						fmt.Fprintf(stdout, "  %s %s\n", alert.At.Format("15:04:05"), alertText(alert))
					}
					fmt.Fprintln(stdout)
				}

				for _, recommendation := range report.Recommendations {
					fmt.Fprintf(stdout, "hint: %s\n", recommendation)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a report")
	return cmd
}

func buildOperationRows(report perfmon.Report) [][]string {
	names := make([]string, 0, len(report.ByOperation))
	for name := range report.ByOperation {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names)+1)
	for _, name := range names {
		stats := report.ByOperation[name]
		rows = append(rows, operationRow(name, stats))
	}
	rows = append(rows, operationRow("(all)", report.Overall))
	return rows
}

func operationRow(name string, stats perfmon.OperationStats) []string {
	return []string{
		name,
		strconv.Itoa(stats.Count),
		strconv.Itoa(stats.Failures),
		stats.Avg.Round(time.Millisecond).String(),
		stats.Max.Round(time.Millisecond).String(),
	}
}

func alertText(alert perfmon.Event) string {
	switch alert.Type {
	case perfmon.EventSlowOperation, perfmon.EventVerySlowOperation:
		return fmt.Sprintf("%s: %s took %s", alert.Type, alert.Operation, alert.Duration.Round(time.Millisecond))
	case perfmon.EventThresholdExceeded:
		return fmt.Sprintf("%s: %s", alert.Type, strings.Join(alert.Issues, "; "))
	default:
		return string(alert.Type)
	}
}

func resourceKind(status string) statusKind {
	switch strings.ToLower(status) {
	case "normal":
		return statusOK
	case "warning":
		return statusWarn
	case "critical":
		return statusError
	default:
		return statusInfo
	}
}
