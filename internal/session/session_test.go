package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"binder/internal/excel"
	"binder/internal/services"
	"binder/internal/session"
	"binder/internal/testsupport"
)

func newService(t *testing.T, bridge excel.Bridge) (*session.Service, *excel.Manager) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	manager := excel.NewManager(bridge, cfg, nil, nil)
	return session.NewService(manager, nil), manager
}

func writeStubFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestServiceCaptureSnapshotsOpenWorkbooks(t *testing.T) {
	bridge := testsupport.NewFakeBridge(
		excel.WorkbookInfo{Name: "Budget.xlsx", FullPath: "/tmp/Budget.xlsx",
			ActiveSheet: "Data", ActiveCell: "$B$7"},
		excel.WorkbookInfo{Name: "Book1"},
	)
	svc, _ := newService(t, bridge)

	sess, err := svc.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if len(sess.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(sess.Entries))
	}
	first := sess.Entries[0]
	if first.FilePath != "/tmp/Budget.xlsx" || first.SheetName != "Data" || first.CellAddress != "B7" {
		t.Fatalf("unexpected first entry: %+v", first)
	}
	// Unsaved workbooks have no path; the name stands in.
	if sess.Entries[1].FilePath != "Book1" {
		t.Fatalf("unexpected second entry: %+v", sess.Entries[1])
	}
	if sess.SavedAt.IsZero() {
		t.Fatal("SavedAt not set")
	}
}

func TestServiceCaptureRequiresOpenWorkbooks(t *testing.T) {
	svc, _ := newService(t, testsupport.NewFakeBridge())
	if _, err := svc.Capture(context.Background()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	savedAt := time.Date(2025, 8, 22, 9, 30, 0, 0, time.Local)
	sess := &session.Session{
		SavedAt: savedAt,
		Entries: []session.Entry{
			{FilePath: "/tmp/Budget.xlsx", SheetName: "Data", CellAddress: "B7"},
			{FilePath: "/tmp/Plan.xlsm"},
		},
	}

	dir := t.TempDir()
	path, err := session.Write(filepath.Join(dir, "team.xlsx"), sess)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if filepath.Base(path) != "team_2025-08-22_09-30-00.xlsx" {
		t.Fatalf("unexpected stamped name: %s", filepath.Base(path))
	}

	got, err := session.Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got.Entries))
	}
	if got.Entries[0] != sess.Entries[0] || got.Entries[1] != sess.Entries[1] {
		t.Fatalf("entries did not round-trip: %+v", got.Entries)
	}
	if !got.SavedAt.Equal(savedAt) {
		t.Fatalf("SavedAt from name stamp = %v, want %v", got.SavedAt, savedAt)
	}
}

func TestWriteRejectsEmptySession(t *testing.T) {
	if _, err := session.Write("x.xlsx", &session.Session{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReadRejectsNonSessionFiles(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "plain.xlsx")
	f := excelize.NewFile()
	if err := f.SaveAs(plain); err != nil {
		t.Fatalf("save plain workbook: %v", err)
	}
	_ = f.Close()
	if _, err := session.Read(plain); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing sheet, got %v", err)
	}

	badHeader := filepath.Join(dir, "bad.xlsx")
	g := excelize.NewFile()
	if err := g.SetSheetName("Sheet1", "Session"); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	if err := g.SetSheetRow("Session", "A1", &[]any{"Path", "Sheet", "Cell"}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := g.SaveAs(badHeader); err != nil {
		t.Fatalf("save bad workbook: %v", err)
	}
	_ = g.Close()
	if _, err := session.Read(badHeader); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for bad header, got %v", err)
	}
}

func TestRestoreRefusesWhenWorkbooksOpen(t *testing.T) {
	bridge := testsupport.NewFakeBridge(excel.WorkbookInfo{Name: "Budget.xlsx"})
	svc, _ := newService(t, bridge)
	sess := &session.Session{Entries: []session.Entry{
		{FilePath: filepath.Join(t.TempDir(), "a.xlsx")},
	}}

	if _, err := svc.Restore(context.Background(), sess, session.RestoreOptions{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// Force bypasses the open-workbook check.
	result, err := svc.Restore(context.Background(), sess, session.RestoreOptions{Force: true})
	if err != nil {
		t.Fatalf("forced restore failed: %v", err)
	}
	if result.Skipped != 1 {
		t.Fatalf("expected missing entry to be skipped, got %+v", result)
	}
}

func TestRestoreOpensSkipsAndActivates(t *testing.T) {
	dir := t.TempDir()
	real := writeStubFile(t, dir, "Budget.xlsx")
	bridge := testsupport.NewFakeBridge()
	svc, _ := newService(t, bridge)

	sess := &session.Session{Entries: []session.Entry{
		{FilePath: real, SheetName: "Data", CellAddress: "C3"},
		{FilePath: filepath.Join(dir, "gone.xlsx")},
	}}

	result, err := svc.Restore(context.Background(), sess, session.RestoreOptions{})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if result.Opened != 1 || result.Skipped != 1 || result.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(bridge.Opened) != 1 || bridge.Opened[0] != real {
		t.Fatalf("unexpected open calls: %v", bridge.Opened)
	}
	if len(bridge.Activated) != 1 || bridge.Activated[0] != "Budget.xlsx|Data|C3" {
		t.Fatalf("unexpected activate calls: %v", bridge.Activated)
	}
	if result.Outcomes[1].Status != session.RestoreSkipped || result.Outcomes[1].Note == "" {
		t.Fatalf("missing-file outcome not annotated: %+v", result.Outcomes[1])
	}
}

func TestRestoreRecordsOpenFailures(t *testing.T) {
	dir := t.TempDir()
	real := writeStubFile(t, dir, "Budget.xlsx")
	bridge := testsupport.NewFakeBridge()
	bridge.OpenErr = errors.New("com rejected open")
	svc, _ := newService(t, bridge)

	sess := &session.Session{Entries: []session.Entry{{FilePath: real}}}
	result, err := svc.Restore(context.Background(), sess, session.RestoreOptions{})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if result.Failed != 1 || result.Opened != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if !strings.Contains(result.Outcomes[0].Note, "com rejected open") {
		t.Fatalf("failure note missing cause: %+v", result.Outcomes[0])
	}
}

func TestRestoreAnnotatesReadOnlyOpens(t *testing.T) {
	dir := t.TempDir()
	real := writeStubFile(t, dir, "Budget.xlsx")
	bridge := testsupport.NewFakeBridge()
	bridge.OpenErr = errors.New("locked by another user")
	bridge.OpenErrOnce = true
	svc, _ := newService(t, bridge)

	sess := &session.Session{Entries: []session.Entry{{FilePath: real}}}
	result, err := svc.Restore(context.Background(), sess, session.RestoreOptions{})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if result.Opened != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if !result.Outcomes[0].ReadOnly {
		t.Fatalf("read-only fallback not annotated: %+v", result.Outcomes[0])
	}
}

func TestListReturnsSessionsNewestFirst(t *testing.T) {
	dir := t.TempDir()

	older := &session.Session{
		SavedAt: time.Date(2025, 8, 20, 8, 0, 0, 0, time.Local),
		Entries: []session.Entry{{FilePath: "/tmp/a.xlsx"}},
	}
	newer := &session.Session{
		SavedAt: time.Date(2025, 8, 21, 8, 0, 0, 0, time.Local),
		Entries: []session.Entry{{FilePath: "/tmp/a.xlsx"}, {FilePath: "/tmp/b.xlsx"}},
	}
	if _, err := session.Write(filepath.Join(dir, "alpha.xlsx"), older); err != nil {
		t.Fatalf("write older: %v", err)
	}
	if _, err := session.Write(filepath.Join(dir, "beta.xlsx"), newer); err != nil {
		t.Fatalf("write newer: %v", err)
	}

	// Neighbors that must be ignored.
	decoy := excelize.NewFile()
	if err := decoy.SaveAs(filepath.Join(dir, "decoy.xlsx")); err != nil {
		t.Fatalf("save decoy: %v", err)
	}
	_ = decoy.Close()
	writeStubFile(t, dir, "~$ghost.xlsx")
	writeStubFile(t, dir, "notes.txt")

	infos, err := session.List(dir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 sessions, got %d: %+v", len(infos), infos)
	}
	if infos[0].Entries != 2 || !strings.HasPrefix(infos[0].Name, "beta_") {
		t.Fatalf("unexpected newest session: %+v", infos[0])
	}
	if infos[1].Entries != 1 || !strings.HasPrefix(infos[1].Name, "alpha_") {
		t.Fatalf("unexpected oldest session: %+v", infos[1])
	}
}

func TestListMissingDirIsEmpty(t *testing.T) {
	infos, err := session.List(filepath.Join(t.TempDir(), "absent"))
	if err != nil || infos != nil {
		t.Fatalf("expected empty result, got %v, %v", infos, err)
	}
}

func TestExportCopiesVerified(t *testing.T) {
	dir := t.TempDir()
	sess := &session.Session{Entries: []session.Entry{{FilePath: "/tmp/a.xlsx"}}}
	src, err := session.Write(filepath.Join(dir, "team.xlsx"), sess)
	if err != nil {
		t.Fatalf("write session: %v", err)
	}

	destDir := t.TempDir()
	dest, err := session.Export(src, destDir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if filepath.Dir(dest) != destDir || filepath.Base(dest) != filepath.Base(src) {
		t.Fatalf("unexpected destination: %s", dest)
	}
	srcInfo, _ := os.Stat(src)
	destInfo, err := os.Stat(dest)
	if err != nil || destInfo.Size() != srcInfo.Size() {
		t.Fatalf("copy mismatch: %v %v", destInfo, err)
	}

	decoy := excelize.NewFile()
	decoyPath := filepath.Join(dir, "decoy.xlsx")
	if err := decoy.SaveAs(decoyPath); err != nil {
		t.Fatalf("save decoy: %v", err)
	}
	_ = decoy.Close()
	if _, err := session.Export(decoyPath, destDir); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for non-session export, got %v", err)
	}
}
