package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"binder/internal/ipc"
	"binder/internal/session"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Save and restore workbook sessions",
	}

	sessionCmd.AddCommand(newSessionSaveCommand(ctx))
	sessionCmd.AddCommand(newSessionLoadCommand(ctx))
	sessionCmd.AddCommand(newSessionListCommand(ctx))
	sessionCmd.AddCommand(newSessionExportCommand(ctx))

	return sessionCmd
}

func newSessionSaveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "save [name]",
		Short: "Snapshot the open workbooks into a session file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionSave(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session saved to %s\n", resp.Path)
				return nil
			})
		},
	}
}

func newSessionLoadCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "load <path>",
		Short: "Reopen the workbooks recorded in a session file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionLoad(args[0], force)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				result := resp.Result
				for _, outcome := range result.Outcomes {
					name := filepath.Base(outcome.Entry.FilePath)
					switch outcome.Status {
					case session.RestoreSkipped:
						fmt.Fprintf(stdout, "Skipped %s: %s\n", name, outcome.Note)
					case session.RestoreFailed:
						fmt.Fprintf(stdout, "Failed %s: %s\n", name, outcome.Note)
					}
				}
				fmt.Fprintf(stdout, "Restored session: %d opened, %d skipped, %d failed\n",
					result.Opened, result.Skipped, result.Failed)
				if result.Failed > 0 {
					return fmt.Errorf("%d workbook(s) failed to open", result.Failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Restore even when workbooks are already open")
	return cmd
}

func newSessionListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored session files, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.dialOptional()
			if err != nil {
				return err
			}

			var sessions []session.FileInfo
			if client != nil {
				defer client.Close()
				resp, err := client.SessionList()
				if err != nil {
					return err
				}
				sessions = resp.Sessions
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				sessions, err = session.List(cfg.Paths.SessionDir)
				if err != nil {
					return err
				}
			}

			if asJSON {
				return writeJSON(cmd, sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions saved")
				return nil
			}
			table := renderTable(
				[]string{"Name", "Saved", "Workbooks", "Path"},
				buildSessionRows(sessions),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildSessionRows(sessions []session.FileInfo) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, info := range sessions {
		rows = append(rows, []string{
			info.Name,
			info.SavedAt.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%d", info.Entries),
			info.Path,
		})
	}
	return rows
}

func newSessionExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <source> <dest>",
		Short: "Copy a session file with integrity verification",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.dialOptional()
			if err != nil {
				return err
			}

			var exported string
			if client != nil {
				defer client.Close()
				resp, err := client.SessionExport(args[0], args[1])
				if err != nil {
					return err
				}
				exported = resp.Path
			} else {
				exported, err = session.Export(args[0], args[1])
				if err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported session to %s\n", exported)
			return nil
		},
	}
}
