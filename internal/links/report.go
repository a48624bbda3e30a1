package links

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"

	"binder/internal/config"
	"binder/internal/textutil"
)

const reportStamp = "20060102_150405"

// RunLog accumulates the narrative lines of an update run, each prefixed
// with a wall-clock timestamp, for the optional on-disk run log.
type RunLog struct {
	lines []string
}

// NewRunLog returns an empty run log.
func NewRunLog() *RunLog {
	return &RunLog{}
}

// Print appends one timestamped line.
func (l *RunLog) Print(msg string) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	l.lines = append(l.lines, ts+" | "+msg)
}

// Printf appends one timestamped formatted line.
func (l *RunLog) Printf(format string, args ...any) {
	l.Print(fmt.Sprintf(format, args...))
}

// Lines returns the accumulated lines.
func (l *RunLog) Lines() []string {
	return l.lines
}

// Write persists the log under dir as link_update_log_<stamp>.txt and
// returns the file path.
func (l *RunLog) Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, "link_update_log_"+time.Now().Format(reportStamp)+".txt")
	content := strings.Join(l.lines, "\n")
	if content != "" {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write run log: %w", err)
	}
	return path, nil
}

// DisplayTarget renders a link target path per the show_full_path setting.
func DisplayTarget(target string, showFullPath bool) string {
	if showFullPath {
		return target
	}
	return baseName(target)
}

// RenderRunLog writes the narrative of a planned and executed update run
// into log, honoring the configured line toggles.
func RenderRunLog(log *RunLog, cfg *config.Config, plan *UpdatePlan, summary *UpdateSummary) {
	log.Print("=== Link Update Started ===")
	log.Printf("Checking links modified within %d days", plan.CheckDays)
	log.Print(CutoffMessage(plan.CheckDays, plan.StartedAt))

	total := len(plan.Workbooks)
	for i, wp := range plan.Workbooks {
		log.Print("")
		log.Print(strings.Repeat("=", 50))
		log.Printf("Scanning (%d/%d): %s", i+1, total, wp.Workbook)
		if wp.Err != "" {
			log.Printf("Error processing %s: %s", wp.Workbook, wp.Err)
			continue
		}
		if len(wp.Decisions) == 0 {
			log.Print("")
			log.Printf("Action (%d/%d): No external links found", i+1, total)
			continue
		}
		log.Printf("  Found %d external link(s)", len(wp.Decisions))

		for j, decision := range wp.Decisions {
			log.Print(strings.Repeat("-", 60))
			if cfg.Links.ShowLink {
				log.Printf("  Link (%d/%d): %s", j+1, len(wp.Decisions),
					DisplayTarget(decision.Target, cfg.Links.ShowFullPath))
			}
			if cfg.Links.ShowLastModified {
				modified := "Not accessible"
				if decision.ModifiedAt != nil {
					modified = decision.ModifiedAt.Format("2006-01-02 15:04:05")
				}
				log.Printf("  Last Modified: %s %s", modified, decision.DaysAgo(plan.StartedAt))
			}
			if cfg.Links.ShowStatus {
				log.Printf("  Status: %s", decision.Detail)
			}
			if decision.Updated {
				log.Printf("    Updated: %s", DisplayTarget(decision.Target, cfg.Links.ShowFullPath))
			} else if decision.Err != "" {
				log.Printf("    Failed to update %s: %s",
					DisplayTarget(decision.Target, cfg.Links.ShowFullPath), decision.Err)
			}
		}
	}

	log.Print("")
	log.Print("=== Link Update Completed ===")
	log.Print("Summary:")
	log.Printf("  Workbooks processed: %d", summary.Workbooks)
	log.Printf("  Links updated: %d", summary.Updated)
}

// WriteScanSummary writes the plan's rows as an xlsx workbook under dir and
// returns the file path. The sheet layout is one header row
// [Scanned file path, Scanned file, External Linkage] plus one row per
// scanned link.
func WriteScanSummary(dir string, plan *UpdatePlan) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, "link_scan_summary_"+time.Now().Format(reportStamp)+".xlsx")

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	const sheet = "External Linkage Scan"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", fmt.Errorf("name summary sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Scanned file path", "Scanned file", "External Linkage"}); err != nil {
		return "", fmt.Errorf("write summary header: %w", err)
	}
	for i, row := range plan.SummaryRows() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", fmt.Errorf("summary row %d: %w", i, err)
		}
		if err := f.SetSheetRow(sheet, cell, &[]any{row[0], row[1], row[2]}); err != nil {
			return "", fmt.Errorf("write summary row %d: %w", i, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save scan summary: %w", err)
	}
	return path, nil
}

// bomWriter opens path for writing with a UTF-8 byte order mark so Excel
// detects the encoding when the export is opened directly.
func bomWriter(path string) (*os.File, *csv.Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create csv: %w", err)
	}
	encoded := unicode.UTF8BOM.NewEncoder().Writer(f)
	return f, csv.NewWriter(encoded), nil
}

var flatCSVHeader = []string{
	"Source Workbook", "Source Sheet", "Source Cell",
	"External File", "Formula", "Link Type",
}

// WriteFlatCSV exports links to path, one row per link. With timestamps
// enabled every row carries the scan time in a trailing column.
func WriteFlatCSV(path string, links []Link, includeTimestamp bool) error {
	f, w, err := bomWriter(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := flatCSVHeader
	if includeTimestamp {
		header = append(append([]string{}, flatCSVHeader...), "Scan Time")
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	scanTime := time.Now().Format("2006-01-02 15:04:05")
	for _, link := range links {
		row := []string{
			link.SourceWorkbook,
			link.SourceSheet,
			textutil.CellDisplay(link.SourceCell),
			link.TargetFile,
			link.Formula,
			string(link.Kind),
		}
		if includeTimestamp {
			row = append(row, scanTime)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return f.Close()
}

var groupedCSVHeader = []string{
	"External File", "Reference Count", "Source Workbook",
	"Source Sheet", "Source Cell", "Formula", "Link Type",
}

// WriteGroupedCSV exports groups to path. The group's file name and count
// appear on its first row only, and a blank row separates groups when more
// than one is present.
func WriteGroupedCSV(path string, groups []FileGroup) error {
	f, w, err := bomWriter(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := w.Write(groupedCSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, group := range groups {
		for i, link := range group.Links {
			file, count := "", ""
			if i == 0 {
				file = group.TargetFile
				count = strconv.Itoa(group.ReferenceCount)
			}
			row := []string{
				file,
				count,
				link.SourceWorkbook,
				link.SourceSheet,
				textutil.CellDisplay(link.SourceCell),
				link.Formula,
				string(link.Kind),
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
		if len(groups) > 1 {
			if err := w.Write(make([]string, len(groupedCSVHeader))); err != nil {
				return fmt.Errorf("write csv separator: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return f.Close()
}
