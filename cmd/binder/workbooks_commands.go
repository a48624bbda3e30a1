package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"binder/internal/excel"
	"binder/internal/ipc"
	"binder/internal/textutil"
)

func newWorkbooksCommand(ctx *commandContext) *cobra.Command {
	workbooksCmd := &cobra.Command{
		Use:     "workbooks",
		Aliases: []string{"wb"},
		Short:   "Inspect and control open workbooks",
	}

	workbooksCmd.AddCommand(newWorkbooksListCommand(ctx))
	workbooksCmd.AddCommand(newWorkbooksSaveCommand(ctx))
	workbooksCmd.AddCommand(newWorkbooksCloseCommand(ctx))
	workbooksCmd.AddCommand(newWorkbooksActivateCommand(ctx))

	return workbooksCmd
}

func newWorkbooksListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open workbooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Workbooks()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Workbooks)
				}
				if len(resp.Workbooks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No workbooks open")
					return nil
				}
				table := renderTable(
					[]string{"Name", "Saved", "Read-only", "Active Sheet", "Cell"},
					buildWorkbookRows(resp.Workbooks),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildWorkbookRows(infos []excel.WorkbookInfo) [][]string {
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.Name,
			yesNo(info.Saved),
			yesNo(info.ReadOnly),
			info.ActiveSheet,
			textutil.CellDisplay(info.ActiveCell),
		})
	}
	return rows
}

func newWorkbooksSaveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "save [workbook...]",
		Short: "Save open workbooks with verification (all when none named)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Save(args)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Results) == 0 {
					fmt.Fprintln(stdout, "No workbooks open")
					return nil
				}

				failed := 0
				for _, result := range resp.Results {
					if result.Verified {
						fmt.Fprintf(stdout, "Saved %s (attempt %d)\n", result.Name, result.Attempts)
						continue
					}
					failed++
					fmt.Fprintf(stdout, "Save not verified for %s after %d attempt(s)\n", result.Name, result.Attempts)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d workbook save(s) failed verification", failed, len(resp.Results))
				}
				return nil
			})
		},
	}
}

func newWorkbooksCloseCommand(ctx *commandContext) *cobra.Command {
	var saveFirst bool

	cmd := &cobra.Command{
		Use:   "close [workbook...]",
		Short: "Close open workbooks (all when none named)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CloseWorkbooks(args, saveFirst)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Closed %d workbook(s)\n", resp.Closed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&saveFirst, "save", false, "Save each workbook before closing")
	return cmd
}

func newWorkbooksActivateCommand(ctx *commandContext) *cobra.Command {
	var sheet string
	var cell string

	cmd := &cobra.Command{
		Use:   "activate <workbook>",
		Short: "Bring a workbook to the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Activate(args[0], sheet, cell); err != nil {
					return err
				}
				target := args[0]
				if sheet != "" {
					target += " " + sheet
				}
				if cell != "" {
					target += "!" + textutil.CellDisplay(cell)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Activated %s\n", target)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to select after activation")
	cmd.Flags().StringVar(&cell, "cell", "", "Cell to select after activation")
	return cmd
}
