package excel

// WorkbookInfo describes a workbook visible to a backend. ActiveSheet and
// ActiveCell are best effort; backends leave them empty when the position
// cannot be read.
type WorkbookInfo struct {
	Name        string `json:"name"`
	FullPath    string `json:"full_path"`
	Saved       bool   `json:"saved"`
	ReadOnly    bool   `json:"read_only"`
	ActiveSheet string `json:"active_sheet,omitempty"`
	ActiveCell  string `json:"active_cell,omitempty"`
}

// CellFormula is one formula cell emitted by a backend scan walk.
type CellFormula struct {
	Workbook string
	Sheet    string
	Cell     string
	Formula  string
}

// OpenOptions controls how a workbook file is opened.
type OpenOptions struct {
	// UpdateLinks asks Excel to refresh external references on open.
	// Session restore keeps this off so stale links never block the open.
	UpdateLinks bool
	ReadOnly    bool
}

// SaveResult reports the outcome of a verified save.
type SaveResult struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Attempts int    `json:"attempts"`
	Verified bool   `json:"verified"`
}
