package excel_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"binder/internal/excel"
	"binder/internal/services"
	"binder/internal/testsupport"
)

func writeTempWorkbookFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		t.Fatalf("write workbook file: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("age workbook file: %v", err)
	}
	return path
}

func TestManagerFindMatchesByTier(t *testing.T) {
	bridge := testsupport.NewFakeBridge(
		excel.WorkbookInfo{Name: "Budget.xlsx", FullPath: "/tmp/Budget.xlsx"},
		excel.WorkbookInfo{Name: "budget.xlsx", FullPath: "/tmp/other/budget.xlsx"},
		excel.WorkbookInfo{Name: "Plan FY25.xlsm", FullPath: "/tmp/Plan FY25.xlsm"},
	)
	mgr := excel.NewManager(bridge, testsupport.NewConfig(t), nil, nil)
	ctx := context.Background()

	exact, err := mgr.Find(ctx, "Budget.xlsx")
	if err != nil {
		t.Fatalf("exact find failed: %v", err)
	}
	if exact.FullPath != "/tmp/Budget.xlsx" {
		t.Fatalf("exact match returned %q", exact.FullPath)
	}

	stem, err := mgr.Find(ctx, "plan fy25")
	if err != nil {
		t.Fatalf("stem find failed: %v", err)
	}
	if stem.Name != "Plan FY25.xlsm" {
		t.Fatalf("stem match returned %q", stem.Name)
	}

	partial, err := mgr.Find(ctx, "FY25")
	if err != nil {
		t.Fatalf("partial find failed: %v", err)
	}
	if partial.Name != "Plan FY25.xlsm" {
		t.Fatalf("partial match returned %q", partial.Name)
	}

	if _, err := mgr.Find(ctx, "udget"); err == nil {
		t.Fatal("expected ambiguous match error")
	} else if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := mgr.Find(ctx, "Missing.xlsx"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestManagerSaveVerifiesModificationTime(t *testing.T) {
	path := writeTempWorkbookFile(t, "Budget.xlsx")
	bridge := testsupport.NewFakeBridge(excel.WorkbookInfo{Name: "Budget.xlsx", FullPath: path, Saved: true})
	mgr := excel.NewManager(bridge, testsupport.NewConfig(t), nil, nil)

	result, err := mgr.Save(context.Background(), "Budget.xlsx")
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if !result.Verified {
		t.Fatal("expected verified save")
	}
	if result.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", result.Attempts)
	}
	if len(bridge.Saves) != 1 {
		t.Fatalf("expected one bridge save, got %d", len(bridge.Saves))
	}
}

func TestManagerSaveRetriesTransientFailures(t *testing.T) {
	path := writeTempWorkbookFile(t, "Budget.xlsx")
	bridge := testsupport.NewFakeBridge(excel.WorkbookInfo{Name: "Budget.xlsx", FullPath: path, Saved: true})
	bridge.SaveErrors["Budget.xlsx"] = []error{
		errors.New("com busy"),
		errors.New("com busy"),
	}
	mgr := excel.NewManager(bridge, testsupport.NewConfig(t), nil, nil)

	result, err := mgr.Save(context.Background(), "Budget.xlsx")
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if result.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", result.Attempts)
	}
	if !result.Verified {
		t.Fatal("expected verified save after retries")
	}
}

func TestManagerSaveFailsWhenNeverVerified(t *testing.T) {
	path := writeTempWorkbookFile(t, "Budget.xlsx")
	bridge := testsupport.NewFakeBridge(excel.WorkbookInfo{Name: "Budget.xlsx", FullPath: path, Saved: true})
	bridge.TouchOnSave = false
	bridge.MarkUnsaved("Budget.xlsx")
	cfg := testsupport.NewConfig(t, testsupport.WithSaveRetries(2))
	mgr := excel.NewManager(bridge, cfg, nil, nil)

	result, err := mgr.Save(context.Background(), "Budget.xlsx")
	if err == nil {
		t.Fatal("expected save verification failure")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if result.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", result.Attempts)
	}
	if len(bridge.Saves) != 2 {
		t.Fatalf("expected 2 bridge saves, got %d", len(bridge.Saves))
	}
}

func TestManagerCloseSavesFirst(t *testing.T) {
	path := writeTempWorkbookFile(t, "Budget.xlsx")
	bridge := testsupport.NewFakeBridge(excel.WorkbookInfo{Name: "Budget.xlsx", FullPath: path, Saved: true})
	mgr := excel.NewManager(bridge, testsupport.NewConfig(t), nil, nil)

	if err := mgr.Close(context.Background(), "Budget.xlsx", true); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if len(bridge.Saves) != 1 {
		t.Fatalf("expected save before close, got %d saves", len(bridge.Saves))
	}
	if len(bridge.Closed) != 1 || bridge.Closed[0] != "Budget.xlsx" {
		t.Fatalf("unexpected closes: %v", bridge.Closed)
	}
}

func TestManagerCloseKeepsWorkbookOpenWhenSaveFails(t *testing.T) {
	path := writeTempWorkbookFile(t, "Budget.xlsx")
	bridge := testsupport.NewFakeBridge(excel.WorkbookInfo{Name: "Budget.xlsx", FullPath: path, Saved: true})
	bridge.TouchOnSave = false
	bridge.MarkUnsaved("Budget.xlsx")
	mgr := excel.NewManager(bridge, testsupport.NewConfig(t), nil, nil)

	if err := mgr.Close(context.Background(), "Budget.xlsx", true); err == nil {
		t.Fatal("expected close to fail on unverified save")
	}
	if len(bridge.Closed) != 0 {
		t.Fatalf("workbook should not be closed, got %v", bridge.Closed)
	}
}

func TestManagerOpenFallsBackReadOnly(t *testing.T) {
	bridge := testsupport.NewFakeBridge()
	bridge.OpenErr = errors.New("file locked")
	bridge.OpenErrOnce = true
	mgr := excel.NewManager(bridge, testsupport.NewConfig(t), nil, nil)

	info, err := mgr.Open(context.Background(), "/tmp/Shared.xlsx", excel.OpenOptions{})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if !info.ReadOnly {
		t.Fatal("expected read-only fallback result")
	}
	if len(bridge.Opened) != 2 {
		t.Fatalf("expected two open attempts, got %d", len(bridge.Opened))
	}
}

type captureRecorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *captureRecorder) RecordOperation(name string, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, name)
}

func TestManagerRecordsOperations(t *testing.T) {
	path := writeTempWorkbookFile(t, "Budget.xlsx")
	bridge := testsupport.NewFakeBridge(excel.WorkbookInfo{Name: "Budget.xlsx", FullPath: path, Saved: true})
	recorder := &captureRecorder{}
	mgr := excel.NewManager(bridge, testsupport.NewConfig(t), nil, recorder)
	ctx := context.Background()

	if _, err := mgr.Workbooks(ctx); err != nil {
		t.Fatalf("Workbooks: %v", err)
	}
	if _, err := mgr.Save(ctx, "Budget.xlsx"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.ops) != 2 || recorder.ops[0] != "workbooks" || recorder.ops[1] != "save" {
		t.Fatalf("unexpected recorded operations: %v", recorder.ops)
	}
}
