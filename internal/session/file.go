package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"binder/internal/fileutil"
	"binder/internal/services"
)

const (
	sheetName   = "Session"
	stampLayout = "2006-01-02_15-04-05"
)

var headerRow = []string{"File Path", "Sheet Name", "Cell Address"}

// Write saves sess as an xlsx under path, inserting a timestamp before the
// extension, and returns the stamped path.
func Write(path string, sess *Session) (string, error) {
	if sess == nil || len(sess.Entries) == 0 {
		return "", services.Wrap(services.ErrValidation, "session", "write",
			"session has no entries", nil)
	}
	savedAt := sess.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".xlsx"
	}
	stamped := fileutil.TimestampedName(strings.TrimSuffix(path, ext), ext, savedAt)
	if dir := filepath.Dir(stamped); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create session dir: %w", err)
		}
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return "", fmt.Errorf("name session sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &[]any{headerRow[0], headerRow[1], headerRow[2]}); err != nil {
		return "", fmt.Errorf("write session header: %w", err)
	}
	for i, entry := range sess.Entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", fmt.Errorf("session row %d: %w", i, err)
		}
		row := []any{entry.FilePath, entry.SheetName, entry.CellAddress}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return "", fmt.Errorf("write session row %d: %w", i, err)
		}
	}
	if err := f.SaveAs(stamped); err != nil {
		return "", fmt.Errorf("save session file: %w", err)
	}
	return stamped, nil
}

// Read parses a session file written by Write. SavedAt comes from the file
// name stamp when present, the file modification time otherwise.
func Read(path string) (*Session, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "session", "read",
			fmt.Sprintf("open session file %q", path), err)
	}
	defer func() {
		_ = f.Close()
	}()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "session", "read",
			fmt.Sprintf("%q has no %q sheet", path, sheetName), err)
	}
	if len(rows) == 0 || !isHeader(rows[0]) {
		return nil, services.Wrap(services.ErrValidation, "session", "read",
			fmt.Sprintf("%q is missing the session header row", path), nil)
	}

	sess := &Session{}
	for _, row := range rows[1:] {
		if cellAt(row, 0) == "" {
			continue
		}
		sess.Entries = append(sess.Entries, Entry{
			FilePath:    cellAt(row, 0),
			SheetName:   cellAt(row, 1),
			CellAddress: cellAt(row, 2),
		})
	}

	if savedAt, ok := stampFromName(path); ok {
		sess.SavedAt = savedAt
	} else if fi, err := os.Stat(path); err == nil {
		sess.SavedAt = fi.ModTime()
	}
	return sess, nil
}

func isHeader(row []string) bool {
	for i, want := range headerRow {
		if cellAt(row, i) != want {
			return false
		}
	}
	return true
}

func cellAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// stampFromName recovers the Write timestamp from a session file name.
func stampFromName(path string) (time.Time, bool) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx := len(base) - len(stampLayout)
	if idx < 1 || base[idx-1] != '_' {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(stampLayout, base[idx:], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
