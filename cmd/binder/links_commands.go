package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"binder/internal/config"
	"binder/internal/excel"
	"binder/internal/fileutil"
	"binder/internal/ipc"
	"binder/internal/links"
	"binder/internal/logging"
	"binder/internal/textutil"
)

func newLinksCommand(ctx *commandContext) *cobra.Command {
	linksCmd := &cobra.Command{
		Use:   "links",
		Short: "Scan, search, analyze, update, and export external workbook links",
	}

	linksCmd.AddCommand(newLinksScanCommand(ctx))
	linksCmd.AddCommand(newLinksUpdateCommand(ctx))
	linksCmd.AddCommand(newLinksSearchCommand(ctx))
	linksCmd.AddCommand(newLinksAnalyzeCommand(ctx))
	linksCmd.AddCommand(newLinksExportCommand(ctx))

	return linksCmd
}

// scanLinks fetches a scan result from the agent when it is running and
// otherwise scans paths.workspace_dir directly.
func scanLinks(cmd *cobra.Command, ctx *commandContext) (*links.ScanResult, error) {
	var result *links.ScanResult
	err := ctx.withWorkbooks(func(client *ipc.Client, mgr *excel.Manager) error {
		if client != nil {
			resp, err := client.LinksScan()
			if err != nil {
				return err
			}
			result = &resp.Result
			return nil
		}
		scanned, err := links.NewScanner(mgr, logging.NewNop()).Scan(cmd.Context())
		if err != nil {
			return err
		}
		result = scanned
		return nil
	})
	return result, err
}

func newLinksScanCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan open workbooks for external links",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := scanLinks(cmd, ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, result)
			}

			stdout := cmd.OutOrStdout()
			if result.Stats.TotalLinks == 0 {
				fmt.Fprintf(stdout, "No external links found in %d workbook(s)\n", result.Stats.TotalWorkbooks)
				return nil
			}

			cfg := ctx.configValue()
			showFullPath := cfg != nil && cfg.Links.ShowFullPath
			table := renderTable(
				[]string{"External File", "References", "Referenced By"},
				buildGroupRows(result.Groups, showFullPath),
				[]columnAlignment{alignLeft, alignRight, alignLeft},
			)
			fmt.Fprintln(stdout, table)
			fmt.Fprintf(stdout, "%d link(s) to %d file(s) across %d workbook(s) in %s\n",
				result.Stats.TotalLinks, result.Stats.UniqueTargets, result.Stats.TotalWorkbooks,
				result.Duration().Round(time.Millisecond))
			for _, scanErr := range result.Errors {
				fmt.Fprintf(stdout, "warn: %s\n", scanErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildGroupRows(groups []links.FileGroup, showFullPath bool) [][]string {
	rows := make([][]string, 0, len(groups))
	for _, group := range groups {
		seen := make(map[string]struct{}, len(group.Links))
		sources := make([]string, 0, len(group.Links))
		target := group.TargetFile
		for _, link := range group.Links {
			if showFullPath && link.TargetPath != "" {
				target = link.TargetPath
			}
			if _, ok := seen[link.SourceWorkbook]; ok {
				continue
			}
			seen[link.SourceWorkbook] = struct{}{}
			sources = append(sources, link.SourceWorkbook)
		}
		rows = append(rows, []string{
			target,
			strconv.Itoa(group.ReferenceCount),
			strings.Join(sources, ", "),
		})
	}
	return rows
}

func newLinksUpdateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Update external links whose targets changed recently",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LinksUpdate()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				report := resp.Report
				for _, line := range report.RunLog {
					fmt.Fprintln(stdout, line)
				}
				if report.Summary != nil {
					s := report.Summary
					fmt.Fprintf(stdout, "Checked %d link(s) in %d workbook(s): %d updated, %d skipped, %d failed\n",
						s.Checked, s.Workbooks, s.Updated, s.Skipped, s.Failed)
				}
				if report.ReportPath != "" {
					fmt.Fprintf(stdout, "Run log written to %s\n", report.ReportPath)
				}
				if report.SummaryPath != "" {
					fmt.Fprintf(stdout, "Scan summary written to %s\n", report.SummaryPath)
				}
				if report.Summary != nil && report.Summary.Failed > 0 {
					return fmt.Errorf("%d link update(s) failed", report.Summary.Failed)
				}
				return nil
			})
		},
	}
}

func newLinksSearchCommand(ctx *commandContext) *cobra.Command {
	var field string
	var grouped bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search scanned links by file, formula, or workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := scanLinks(cmd, ctx)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			searchField := links.SearchField(strings.TrimSpace(field))

			if grouped {
				groups, err := links.GroupedSearch(result.Links, searchField, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, groups)
				}
				if len(groups) == 0 {
					fmt.Fprintln(stdout, "No links matched")
					return nil
				}
				cfg := ctx.configValue()
				table := renderTable(
					[]string{"External File", "References", "Referenced By"},
					buildGroupRows(groups, cfg != nil && cfg.Links.ShowFullPath),
					[]columnAlignment{alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(stdout, table)
				return nil
			}

			matches, err := links.Search(result.Links, searchField, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, matches)
			}
			if len(matches) == 0 {
				fmt.Fprintln(stdout, "No links matched")
				return nil
			}
			table := renderTable(
				[]string{"Workbook", "Sheet", "Cell", "External File", "Formula"},
				buildLinkRows(matches),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(stdout, table)
			fmt.Fprintf(stdout, "%d match(es)\n", len(matches))
			return nil
		},
	}

	cmd.Flags().StringVar(&field, "field", string(links.SearchTarget),
		"Search field: external_file, formula, source_workbook, or all")
	cmd.Flags().BoolVarP(&grouped, "grouped", "g", false, "Group matches by external file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildLinkRows(matches []links.Link) [][]string {
	rows := make([][]string, 0, len(matches))
	for _, link := range matches {
		rows = append(rows, []string{
			link.SourceWorkbook,
			link.SourceSheet,
			textutil.CellDisplay(link.SourceCell),
			link.TargetFile,
			textutil.Truncate(link.Formula, 60),
		})
	}
	return rows
}

func newLinksAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Rate formula links by breakage indicators and complexity",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := scanLinks(cmd, ctx)
			if err != nil {
				return err
			}

			analyses := links.AnalyzeLinks(result.Links)
			if asJSON {
				return writeJSON(cmd, analyses)
			}

			stdout := cmd.OutOrStdout()
			if len(analyses) == 0 {
				fmt.Fprintln(stdout, "No formula links to analyze")
				return nil
			}

			broken := 0
			rows := make([][]string, 0, len(analyses))
			for _, analysis := range analyses {
				if analysis.Broken {
					broken++
				}
				rows = append(rows, []string{
					analysis.Link.SourceWorkbook,
					textutil.CellDisplay(analysis.Link.SourceCell),
					analysis.Link.TargetFile,
					strconv.Itoa(len(analysis.References)),
					strconv.Itoa(analysis.Complexity),
					textutil.Ternary(analysis.Broken, "yes", "no"),
				})
			}
			table := renderTable(
				[]string{"Workbook", "Cell", "External File", "Refs", "Score", "Broken"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			)
			fmt.Fprintln(stdout, table)
			fmt.Fprintf(stdout, "%d formula link(s) analyzed, %d broken\n", len(analyses), broken)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newLinksExportCommand(ctx *commandContext) *cobra.Command {
	var grouped bool
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export scanned links to CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := scanLinks(cmd, ctx)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if result.Stats.TotalLinks == 0 {
				fmt.Fprintln(stdout, "No external links found; nothing to export")
				return nil
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target := strings.TrimSpace(outPath)
			if target == "" {
				base := "links_flat"
				if grouped {
					base = "links_grouped"
				}
				target = filepath.Join(cfg.Paths.ReportDir, fileutil.TimestampedName(base, ".csv", time.Now()))
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve export path: %w", err)
				}
				target = expanded
			}

			if grouped {
				err = links.WriteGroupedCSV(target, result.Groups)
			} else {
				err = links.WriteFlatCSV(target, result.Links, true)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Exported %d link(s) to %s\n", result.Stats.TotalLinks, target)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&grouped, "grouped", "g", false, "Export one row per external file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination CSV path (defaults to the report directory)")
	return cmd
}
