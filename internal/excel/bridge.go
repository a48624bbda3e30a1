package excel

import (
	"context"
	"time"
)

// Bridge is the low-level workbook backend. The live implementation talks to
// a running Excel instance over COM; the workspace implementation reads
// workbook files from a directory. Bridge calls are not safe for concurrent
// use; the agent serializes them through its dispatch loop.
type Bridge interface {
	// Workbooks returns open (or discovered) workbooks in collection order.
	Workbooks(ctx context.Context) ([]WorkbookInfo, error)
	// OpenWorkbook opens the file at path and returns the resulting workbook.
	OpenWorkbook(ctx context.Context, path string, opts OpenOptions) (WorkbookInfo, error)
	// SaveWorkbook saves the named workbook in place.
	SaveWorkbook(ctx context.Context, name string) error
	// CloseWorkbook closes the named workbook, saving first when save is set.
	CloseWorkbook(ctx context.Context, name string, save bool) error
	// ActivateWorkbook brings the named workbook to the front, optionally
	// selecting a sheet and cell.
	ActivateWorkbook(ctx context.Context, name, sheet, cell string) error
	// UpdateLink refreshes one external link source on the named workbook.
	UpdateLink(ctx context.Context, workbook, target string) error
	// LinkSources returns the workbook-type link source paths registered on
	// the named workbook.
	LinkSources(ctx context.Context, workbook string) ([]string, error)
	// Formulas walks every formula cell of the named workbook in sheet and
	// cell order, stopping early when fn returns an error.
	Formulas(ctx context.Context, workbook string, fn func(CellFormula) error) error
	// Release frees backend resources. The bridge is unusable afterwards.
	Release()
}

// Recorder receives operation timings from the manager. The perf monitor
// implements it; a nil recorder disables timing.
type Recorder interface {
	RecordOperation(name string, duration time.Duration, err error)
}
