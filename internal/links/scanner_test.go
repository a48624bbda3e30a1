package links_test

import (
	"context"
	"errors"
	"testing"

	"binder/internal/excel"
	"binder/internal/links"
	"binder/internal/testsupport"
)

func newScanManager(t *testing.T, bridge *testsupport.FakeBridge) *excel.Manager {
	t.Helper()
	return excel.NewManager(bridge, testsupport.NewConfig(t), nil, nil)
}

func TestScanCollectsBothKinds(t *testing.T) {
	bridge := testsupport.NewFakeBridge(
		excel.WorkbookInfo{Name: "Report.xlsx", FullPath: "/data/Report.xlsx"},
		excel.WorkbookInfo{Name: "Empty.xlsx", FullPath: "/data/Empty.xlsx"},
	)
	bridge.Sources["Report.xlsx"] = []string{"/data/Budget 2025.xlsx"}
	bridge.Cells["Report.xlsx"] = []excel.CellFormula{
		{Workbook: "Report.xlsx", Sheet: "Data", Cell: "$B$2", Formula: "='[Budget 2025.xlsx]Sheet1'!A1*2"},
		{Workbook: "Report.xlsx", Sheet: "Data", Cell: "$C$3", Formula: "=SUM(A1:A2)"},
		{Workbook: "Report.xlsx", Sheet: "Data", Cell: "$D$4", Formula: "=[Rates.xlsx]S!A1+[Rates.xlsx]S!B1"},
		{Workbook: "Report.xlsx", Sheet: "Data", Cell: "$B$2", Formula: "='[Budget 2025.xlsx]Sheet1'!A1*2"},
	}

	scanner := links.NewScanner(newScanManager(t, bridge), nil)
	result, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(result.Links) != 3 {
		t.Fatalf("expected 3 links after dedup, got %d: %+v", len(result.Links), result.Links)
	}
	source := result.Links[0]
	if source.Kind != links.KindLinkSource || source.TargetFile != "Budget 2025.xlsx" {
		t.Fatalf("unexpected link source entry: %+v", source)
	}
	if source.TargetPath != "/data/Budget 2025.xlsx" || source.Formula != "LinkSource: /data/Budget 2025.xlsx" {
		t.Fatalf("link source should keep the full path: %+v", source)
	}
	if source.SourceSheet != "" || source.SourceCell != "" {
		t.Fatalf("link source should have no cell context: %+v", source)
	}

	stats := result.Stats
	if stats.TotalWorkbooks != 2 || stats.WorkbooksWithLinks != 1 {
		t.Fatalf("unexpected workbook stats: %+v", stats)
	}
	if stats.TotalLinks != 3 || stats.UniqueTargets != 2 || stats.LinkSources != 1 || stats.FormulaLinks != 2 {
		t.Fatalf("unexpected link stats: %+v", stats)
	}

	if len(result.Groups) != 2 || result.Groups[0].TargetFile != "Budget 2025.xlsx" || result.Groups[0].ReferenceCount != 2 {
		t.Fatalf("unexpected groups: %+v", result.Groups)
	}
	if len(result.Workbooks) != 2 {
		t.Fatalf("expected both workbooks listed, got %v", result.Workbooks)
	}
	if result.Duration() < 0 {
		t.Fatal("expected non-negative duration")
	}
}

func TestScanKeepsPartialResultsOnError(t *testing.T) {
	bridge := testsupport.NewFakeBridge(
		excel.WorkbookInfo{Name: "Report.xlsx", FullPath: "/data/Report.xlsx"},
	)
	bridge.Sources["Report.xlsx"] = []string{"/data/Budget.xlsx"}
	bridge.FormulasErr = errors.New("sheet walk failed")

	scanner := links.NewScanner(newScanManager(t, bridge), nil)
	result, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 scan error, got %v", result.Errors)
	}
	if len(result.Links) != 1 || result.Links[0].Kind != links.KindLinkSource {
		t.Fatalf("expected the link source to survive the formula failure: %+v", result.Links)
	}
}
