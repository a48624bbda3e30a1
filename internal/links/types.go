package links

import (
	"fmt"
	"time"
)

// Kind distinguishes how a link was discovered.
type Kind string

const (
	// KindLinkSource marks links reported by the workbook's link registry.
	KindLinkSource Kind = "LinkSource"
	// KindFormula marks links extracted from formula text.
	KindFormula Kind = "Formula"
)

// Link is one external reference found during a scan. TargetFile is always
// a base name; TargetPath carries the full path when the registry provided
// one. Links are immutable once created and discarded on the next scan.
type Link struct {
	SourceWorkbook string `json:"source_workbook"`
	SourceSheet    string `json:"source_sheet,omitempty"`
	SourceCell     string `json:"source_cell,omitempty"`
	TargetFile     string `json:"target_file"`
	TargetPath     string `json:"target_path,omitempty"`
	Formula        string `json:"formula"`
	Kind           Kind   `json:"kind"`
}

// FileGroup collects the links that reference one external file, in
// discovery order.
type FileGroup struct {
	TargetFile     string `json:"target_file"`
	Links          []Link `json:"links"`
	ReferenceCount int    `json:"reference_count"`
}

// Caption renders the group's reference count for display.
func (g FileGroup) Caption() string {
	if g.ReferenceCount == 1 {
		return "1 reference"
	}
	return fmt.Sprintf("%d references", g.ReferenceCount)
}

// Stats summarizes one scan pass.
type Stats struct {
	TotalWorkbooks     int `json:"total_workbooks"`
	WorkbooksWithLinks int `json:"workbooks_with_links"`
	TotalLinks         int `json:"total_links"`
	UniqueTargets      int `json:"unique_targets"`
	UniqueWorkbooks    int `json:"unique_workbooks"`
	LinkSources        int `json:"link_sources"`
	FormulaLinks       int `json:"formula_links"`
}

// ScanResult is the full output of one scan pass.
type ScanResult struct {
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Workbooks  []string    `json:"workbooks"`
	Links      []Link      `json:"links"`
	Groups     []FileGroup `json:"groups"`
	Stats      Stats       `json:"stats"`
	Errors     []string    `json:"errors,omitempty"`
}

// Duration returns the wall-clock span of the scan.
func (r *ScanResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
