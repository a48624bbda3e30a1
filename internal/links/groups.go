package links

import (
	"fmt"
	"sort"
	"strings"

	"binder/internal/services"
)

// BuildGroups buckets links by target file. Grouping keys are
// case-insensitive; the first-seen spelling names the group. Groups are
// ordered by reference count descending, then name.
func BuildGroups(links []Link) []FileGroup {
	byKey := make(map[string]*FileGroup)
	var order []string
	for _, link := range links {
		key := strings.ToLower(link.TargetFile)
		group, ok := byKey[key]
		if !ok {
			group = &FileGroup{TargetFile: link.TargetFile}
			byKey[key] = group
			order = append(order, key)
		}
		group.Links = append(group.Links, link)
	}

	groups := make([]FileGroup, 0, len(order))
	for _, key := range order {
		group := byKey[key]
		group.ReferenceCount = len(group.Links)
		groups = append(groups, *group)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].ReferenceCount != groups[j].ReferenceCount {
			return groups[i].ReferenceCount > groups[j].ReferenceCount
		}
		return strings.ToLower(groups[i].TargetFile) < strings.ToLower(groups[j].TargetFile)
	})
	return groups
}

// BuildStats derives counters from a flat link list. Workbook totals are
// filled in by the scanner, which knows how many workbooks it visited.
func BuildStats(links []Link) Stats {
	stats := Stats{TotalLinks: len(links)}
	targets := make(map[string]struct{})
	workbooks := make(map[string]struct{})
	for _, link := range links {
		targets[strings.ToLower(link.TargetFile)] = struct{}{}
		workbooks[link.SourceWorkbook] = struct{}{}
		switch link.Kind {
		case KindLinkSource:
			stats.LinkSources++
		case KindFormula:
			stats.FormulaLinks++
		}
	}
	stats.UniqueTargets = len(targets)
	stats.UniqueWorkbooks = len(workbooks)
	return stats
}

// SearchField selects which link field a search matches against.
type SearchField string

const (
	SearchTarget   SearchField = "external_file"
	SearchFormula  SearchField = "formula"
	SearchWorkbook SearchField = "source_workbook"
	SearchAll      SearchField = "all"
)

// Search filters links by case-insensitive substring match on the given
// field. An empty keyword returns every link.
func Search(links []Link, field SearchField, keyword string) ([]Link, error) {
	if field == "" {
		field = SearchTarget
	}
	switch field {
	case SearchTarget, SearchFormula, SearchWorkbook, SearchAll:
	default:
		return nil, services.Wrap(services.ErrValidation, "links", "search",
			fmt.Sprintf("unknown search field %q", field), nil)
	}
	if keyword == "" {
		return links, nil
	}

	lowered := strings.ToLower(keyword)
	var matches []Link
	for _, link := range links {
		var match bool
		switch field {
		case SearchTarget:
			match = strings.Contains(strings.ToLower(link.TargetFile), lowered)
		case SearchFormula:
			match = strings.Contains(strings.ToLower(link.Formula), lowered)
		case SearchWorkbook:
			match = strings.Contains(strings.ToLower(link.SourceWorkbook), lowered)
		case SearchAll:
			match = strings.Contains(strings.ToLower(link.TargetFile), lowered) ||
				strings.Contains(strings.ToLower(link.Formula), lowered) ||
				strings.Contains(strings.ToLower(link.SourceWorkbook), lowered)
		}
		if match {
			matches = append(matches, link)
		}
	}
	return matches, nil
}

// GroupedSearch returns the matches of Search bucketed into fresh groups.
func GroupedSearch(links []Link, field SearchField, keyword string) ([]FileGroup, error) {
	matches, err := Search(links, field, keyword)
	if err != nil {
		return nil, err
	}
	return BuildGroups(matches), nil
}
