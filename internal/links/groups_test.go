package links_test

import (
	"errors"
	"testing"

	"binder/internal/links"
	"binder/internal/services"
)

func sampleLinks() []links.Link {
	return []links.Link{
		{SourceWorkbook: "Report.xlsx", SourceSheet: "Data", SourceCell: "$A$1",
			TargetFile: "Budget 2025.xlsx", Formula: "='[Budget 2025.xlsx]Sheet1'!A1", Kind: links.KindFormula},
		{SourceWorkbook: "Report.xlsx", TargetFile: "budget 2025.xlsx",
			TargetPath: `C:\data\budget 2025.xlsx`, Formula: `LinkSource: C:\data\budget 2025.xlsx`, Kind: links.KindLinkSource},
		{SourceWorkbook: "Plan.xlsm", SourceSheet: "Q1", SourceCell: "$B$2",
			TargetFile: "Rates.xlsx", Formula: "=VLOOKUP(A1,[Rates.xlsx]S!A:B,2,0)", Kind: links.KindFormula},
	}
}

func TestBuildGroupsMergesCaseInsensitive(t *testing.T) {
	groups := links.BuildGroups(sampleLinks())
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(groups), groups)
	}
	if groups[0].TargetFile != "Budget 2025.xlsx" || groups[0].ReferenceCount != 2 {
		t.Fatalf("unexpected first group: %+v", groups[0])
	}
	if groups[0].Caption() != "2 references" {
		t.Fatalf("unexpected caption: %q", groups[0].Caption())
	}
	if groups[1].TargetFile != "Rates.xlsx" || groups[1].Caption() != "1 reference" {
		t.Fatalf("unexpected second group: %+v", groups[1])
	}
}

func TestBuildGroupsOrdersByCountThenName(t *testing.T) {
	list := []links.Link{
		{SourceWorkbook: "w", TargetFile: "zeta.xlsx", Kind: links.KindFormula},
		{SourceWorkbook: "w", TargetFile: "alpha.xlsx", Kind: links.KindFormula},
		{SourceWorkbook: "w", SourceCell: "$A$1", TargetFile: "zeta.xlsx", Kind: links.KindFormula},
		{SourceWorkbook: "w", SourceCell: "$A$2", TargetFile: "alpha.xlsx", Kind: links.KindFormula},
	}
	groups := links.BuildGroups(list)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].TargetFile != "alpha.xlsx" || groups[1].TargetFile != "zeta.xlsx" {
		t.Fatalf("unexpected tie-break order: %s, %s", groups[0].TargetFile, groups[1].TargetFile)
	}
}

func TestBuildStatsCountsKinds(t *testing.T) {
	stats := links.BuildStats(sampleLinks())
	if stats.TotalLinks != 3 || stats.UniqueTargets != 2 || stats.UniqueWorkbooks != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.LinkSources != 1 || stats.FormulaLinks != 2 {
		t.Fatalf("unexpected kind counts: %+v", stats)
	}
}

func TestSearchFields(t *testing.T) {
	list := sampleLinks()

	byTarget, err := links.Search(list, links.SearchTarget, "budget")
	if err != nil {
		t.Fatalf("Search target failed: %v", err)
	}
	if len(byTarget) != 2 {
		t.Fatalf("expected 2 target matches, got %d", len(byTarget))
	}

	byFormula, err := links.Search(list, links.SearchFormula, "vlookup")
	if err != nil {
		t.Fatalf("Search formula failed: %v", err)
	}
	if len(byFormula) != 1 || byFormula[0].SourceWorkbook != "Plan.xlsm" {
		t.Fatalf("unexpected formula matches: %+v", byFormula)
	}

	byWorkbook, err := links.Search(list, links.SearchWorkbook, "plan")
	if err != nil {
		t.Fatalf("Search workbook failed: %v", err)
	}
	if len(byWorkbook) != 1 {
		t.Fatalf("expected 1 workbook match, got %d", len(byWorkbook))
	}

	all, err := links.Search(list, links.SearchAll, "rates")
	if err != nil {
		t.Fatalf("Search all failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 match across fields, got %d", len(all))
	}

	everything, err := links.Search(list, links.SearchTarget, "")
	if err != nil {
		t.Fatalf("Search empty keyword failed: %v", err)
	}
	if len(everything) != len(list) {
		t.Fatalf("empty keyword should return all links, got %d", len(everything))
	}

	if _, err := links.Search(list, links.SearchField("bogus"), "x"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown field, got %v", err)
	}
}

func TestGroupedSearch(t *testing.T) {
	groups, err := links.GroupedSearch(sampleLinks(), links.SearchTarget, "budget")
	if err != nil {
		t.Fatalf("GroupedSearch failed: %v", err)
	}
	if len(groups) != 1 || groups[0].ReferenceCount != 2 {
		t.Fatalf("unexpected grouped search result: %+v", groups)
	}
}
