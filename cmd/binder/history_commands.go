package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"binder/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
	}

	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryStatsCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))

	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var kind string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.dialOptional()
			if err != nil {
				return err
			}

			var runs []history.RunRecord
			if client != nil {
				defer client.Close()
				resp, err := client.HistoryList(kind, limit)
				if err != nil {
					return err
				}
				runs = resp.Runs
			} else {
				trimmed := history.Kind(strings.TrimSpace(kind))
				if trimmed != "" && !history.KnownKind(trimmed) {
					return fmt.Errorf("unknown run kind %q", kind)
				}
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				store, err := history.Open(cfg)
				if err != nil {
					return err
				}
				defer store.Close()
				records, err := store.List(cmd.Context(), trimmed, limit)
				if err != nil {
					return err
				}
				for _, record := range records {
					if record != nil {
						runs = append(runs, *record)
					}
				}
			}

			if asJSON {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs")
				return nil
			}
			table := renderTable(
				[]string{"Run", "Kind", "Status", "Started", "Workbooks", "Links", "Updated", "Failed"},
				buildRunRows(runs),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "",
		"Filter by run kind: scan, update, save, session-save, session-restore, or procs-cleanup")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildRunRows(runs []history.RunRecord) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortRunID(run.RunID),
			string(run.Kind),
			string(run.Status),
			run.StartedAt.Format("2006-01-02 15:04:05"),
			strconv.Itoa(run.Workbooks),
			strconv.Itoa(run.LinksFound),
			strconv.Itoa(run.LinksUpdated),
			strconv.Itoa(run.LinksFailed),
		})
	}
	return rows
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one recorded run in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.dialOptional()
			if err != nil {
				return err
			}

			var run history.RunRecord
			if client != nil {
				defer client.Close()
				resp, err := client.HistoryGet(args[0])
				if err != nil {
					return err
				}
				run = resp.Run
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				store, err := history.Open(cfg)
				if err != nil {
					return err
				}
				defer store.Close()
				record, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("no run record with id %q", args[0])
				}
				run = *record
			}

			if asJSON {
				return writeJSON(cmd, run)
			}
			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Run:       %s\n", run.RunID)
			fmt.Fprintf(stdout, "Kind:      %s\n", run.Kind)
			fmt.Fprintf(stdout, "Status:    %s\n", run.Status)
			fmt.Fprintf(stdout, "Started:   %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(stdout, "Duration:  %s\n", run.Duration().Round(time.Millisecond))
			fmt.Fprintf(stdout, "Workbooks: %d\n", run.Workbooks)
			fmt.Fprintf(stdout, "Links:     %d found, %d updated, %d skipped, %d failed\n",
				run.LinksFound, run.LinksUpdated, run.LinksSkipped, run.LinksFailed)
			if run.Detail != "" {
				fmt.Fprintf(stdout, "Detail:    %s\n", run.Detail)
			}
			if run.ReportPath != "" {
				fmt.Fprintf(stdout, "Report:    %s\n", run.ReportPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of field lines")
	return cmd
}

func newHistoryStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate run counts by kind and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.dialOptional()
			if err != nil {
				return err
			}

			var summary history.Summary
			if client != nil {
				defer client.Close()
				resp, err := client.HistoryStats()
				if err != nil {
					return err
				}
				summary = resp.Summary
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				store, err := history.Open(cfg)
				if err != nil {
					return err
				}
				defer store.Close()
				summary, err = store.Stats(cmd.Context())
				if err != nil {
					return err
				}
			}

			if asJSON {
				return writeJSON(cmd, summary)
			}
			stdout := cmd.OutOrStdout()
			if summary.Total == 0 {
				fmt.Fprintln(stdout, "No recorded runs")
				return nil
			}
			table := renderTable(
				[]string{"Kind", "Count"},
				buildKindRows(summary),
				[]columnAlignment{alignLeft, alignRight},
			)
			fmt.Fprintln(stdout, table)
			fmt.Fprintf(stdout, "Total: %d (ok %d, partial %d, error %d)\n",
				summary.Total,
				summary.ByStatus[history.StatusOK],
				summary.ByStatus[history.StatusPartial],
				summary.ByStatus[history.StatusError])
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildKindRows(summary history.Summary) [][]string {
	kinds := make([]string, 0, len(summary.ByKind))
	for kind := range summary.ByKind {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	rows := make([][]string, 0, len(kinds))
	for _, kind := range kinds {
		rows = append(rows, []string{kind, strconv.Itoa(summary.ByKind[history.Kind(kind)])})
	}
	return rows
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.dialOptional()
			if err != nil {
				return err
			}

			var removed int64
			if client != nil {
				defer client.Close()
				resp, err := client.HistoryClear()
				if err != nil {
					return err
				}
				removed = resp.Removed
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				store, err := history.Open(cfg)
				if err != nil {
					return err
				}
				defer store.Close()
				removed, err = store.Clear(cmd.Context())
				if err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run record(s)\n", removed)
			return nil
		},
	}
}
