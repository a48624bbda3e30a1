package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"binder/internal/ipc"
	"binder/internal/procs"
)

func newProcsCommand(ctx *commandContext) *cobra.Command {
	procsCmd := &cobra.Command{
		Use:   "procs",
		Short: "Inspect and clean up Excel processes",
	}

	procsCmd.AddCommand(newProcsStatusCommand(ctx))
	procsCmd.AddCommand(newProcsCleanupCommand(ctx))
	procsCmd.AddCommand(newProcsCloseAllCommand(ctx))

	return procsCmd
}

func newProcsStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Excel process health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ProcsHealth()
				if err != nil {
					return err
				}
				report := resp.Report
				if asJSON {
					return writeJSON(cmd, report)
				}

				stdout := cmd.OutOrStdout()
				if report.Total == 0 {
					fmt.Fprintln(stdout, "No Excel processes running")
					return nil
				}

				table := renderTable(
					[]string{"PID", "Name", "Status", "Memory (MB)", "Zombie", "Started"},
					buildProcessRows(report.Processes),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(stdout, table)
				fmt.Fprintf(stdout, "%d process(es): %d zombie, %d high-memory\n",
					report.Total, report.Zombies, report.HighMemory)
				for _, recommendation := range report.Recommendations {
					fmt.Fprintf(stdout, "hint: %s\n", recommendation)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildProcessRows(processes []procs.Process) [][]string {
	rows := make([][]string, 0, len(processes))
	for _, proc := range processes {
		rows = append(rows, []string{
			strconv.Itoa(int(proc.PID)),
			proc.Name,
			proc.Status,
			fmt.Sprintf("%.1f", proc.MemoryMB),
			yesNo(proc.Zombie),
			proc.Created.Format("2006-01-02 15:04:05"),
		})
	}
	return rows
}

func newProcsCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Terminate zombie Excel processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ProcsCleanup()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				result := resp.Result
				if result.Matched == 0 {
					fmt.Fprintln(stdout, "No Excel processes running")
					return nil
				}
				if len(result.Cleaned) == 0 {
					fmt.Fprintf(stdout, "No zombie processes found (%d process(es) checked)\n", result.Matched)
					return nil
				}
				fmt.Fprintf(stdout, "Cleaned %d zombie process(es) (%d forced) out of %d checked\n",
					len(result.Cleaned), len(result.Forced), result.Matched)
				return nil
			})
		},
	}
}

func newProcsCloseAllCommand(ctx *commandContext) *cobra.Command {
	var saveFirst bool

	cmd := &cobra.Command{
		Use:   "close-all",
		Short: "Close every Excel process, terminating stragglers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ProcsForceClose(saveFirst)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				result := resp.Result
				if result.Matched == 0 {
					fmt.Fprintln(stdout, "No Excel processes running")
					return nil
				}
				fmt.Fprintf(stdout, "Closed %d of %d Excel process(es) (%d forced)\n",
					len(result.Cleaned), result.Matched, len(result.Forced))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&saveFirst, "save", false, "Save open workbooks before closing")
	return cmd
}
