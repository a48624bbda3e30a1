package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// SheetSpec describes one sheet of a generated workbook fixture.
type SheetSpec struct {
	Name     string
	Cells    map[string]any
	Formulas map[string]string
}

// WriteWorkbook writes an xlsx fixture with the given sheets to path.
func WriteWorkbook(t testing.TB, path string, sheets ...SheetSpec) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else {
			if _, err := f.NewSheet(sheet.Name); err != nil {
				t.Fatalf("new sheet %s: %v", sheet.Name, err)
			}
		}
		for axis, value := range sheet.Cells {
			if err := f.SetCellValue(sheet.Name, axis, value); err != nil {
				t.Fatalf("set cell %s!%s: %v", sheet.Name, axis, err)
			}
		}
		for axis, formula := range sheet.Formulas {
			if err := f.SetCellFormula(sheet.Name, axis, formula); err != nil {
				t.Fatalf("set formula %s!%s: %v", sheet.Name, axis, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook %s: %v", path, err)
	}
}
