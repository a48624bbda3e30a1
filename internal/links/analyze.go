package links

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// linkPattern matches bracketed workbook tokens like [Budget.xlsx] or
// [path\Budget.xlsx] inside formula text.
var linkPattern = regexp.MustCompile(`(?i)\[([^\]]+\.xlsx?m?)\]`)

// refPattern additionally captures the sheet and range that follow a
// bracketed token, as in [Budget.xlsx]Sheet1!A1:B2.
var refPattern = regexp.MustCompile(`(?i)\[([^\]]+\.xlsx?m?)\]([^!]*!)?([\w\$:]+)`)

// bracketPattern counts bracketed tokens of any kind for the complexity
// score.
var bracketPattern = regexp.MustCompile(`\[[^\]]+\]`)

var brokenIndicators = []string{
	"#REF!", "#NAME?", "#VALUE!", "#N/A",
	// Quoted external references usually mean the path no longer resolves.
	"'[", "']",
}

// HasExternalReference is a cheap prefilter applied before the regex pass.
func HasExternalReference(formula string) bool {
	if !strings.Contains(formula, "[") || !strings.Contains(formula, "]") {
		return false
	}
	lowered := strings.ToLower(formula)
	for _, ext := range []string{".xlsx", ".xls", ".xlsm"} {
		if strings.Contains(lowered, ext) {
			return true
		}
	}
	return false
}

// ExtractTargets returns the external file names referenced by formula,
// reduced to base names, first occurrence order, without duplicates.
func ExtractTargets(formula string) []string {
	matches := linkPattern.FindAllStringSubmatch(formula, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	targets := make([]string, 0, len(matches))
	for _, match := range matches {
		name := baseName(match[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		targets = append(targets, name)
	}
	return targets
}

// Reference is one fully parsed external reference within a formula.
type Reference struct {
	File  string `json:"file"`
	Sheet string `json:"sheet,omitempty"`
	Range string `json:"range,omitempty"`
	Full  string `json:"full"`
}

// ExtractReferences parses file, sheet, and range for every external
// reference in formula.
func ExtractReferences(formula string) []Reference {
	matches := refPattern.FindAllStringSubmatch(formula, -1)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]Reference, 0, len(matches))
	for _, match := range matches {
		ref := Reference{
			File:  match[1],
			Sheet: strings.TrimSuffix(match[2], "!"),
			Range: match[3],
		}
		if ref.Sheet != "" {
			ref.Full = "[" + ref.File + "]" + ref.Sheet + "!" + ref.Range
		} else {
			ref.Full = "[" + ref.File + "]" + ref.Range
		}
		refs = append(refs, ref)
	}
	return refs
}

// IsBrokenLink reports whether formula carries one of the known breakage
// indicators.
func IsBrokenLink(formula string) bool {
	for _, indicator := range brokenIndicators {
		if strings.Contains(formula, indicator) {
			return true
		}
	}
	return false
}

// ComplexityScore rates a formula: external references weigh double, then
// nesting depth, operator count, and length contribute.
func ComplexityScore(formula string) int {
	score := len(bracketPattern.FindAllString(formula, -1)) * 2

	if nested := strings.Count(formula, "(") - 1; nested > 0 {
		score += nested
	}

	for _, op := range []string{"+", "-", "*", "/", "&", "=", "<", ">"} {
		score += strings.Count(formula, op)
	}

	score += len(formula) / 50
	return score
}

// Analysis is the inspection record for one formula link.
type Analysis struct {
	Link       Link        `json:"link"`
	References []Reference `json:"references,omitempty"`
	Broken     bool        `json:"broken"`
	Complexity int         `json:"complexity"`
}

// AnalyzeLinks inspects every formula-derived link: parsed references,
// breakage indicators, and the complexity score. Broken links sort first,
// then higher scores; ties keep discovery order. Registry links carry no
// formula text and are skipped.
func AnalyzeLinks(found []Link) []Analysis {
	var analyses []Analysis
	for _, link := range found {
		if link.Kind != KindFormula {
			continue
		}
		analyses = append(analyses, Analysis{
			Link:       link,
			References: ExtractReferences(link.Formula),
			Broken:     IsBrokenLink(link.Formula),
			Complexity: ComplexityScore(link.Formula),
		})
	}
	sort.SliceStable(analyses, func(i, j int) bool {
		if analyses[i].Broken != analyses[j].Broken {
			return analyses[i].Broken
		}
		return analyses[i].Complexity > analyses[j].Complexity
	})
	return analyses
}

// baseName reduces a possibly path-qualified token to its file name. Tokens
// can carry Windows separators regardless of the host platform.
func baseName(token string) string {
	token = filepath.Base(token)
	if idx := strings.LastIndexAny(token, `\/`); idx >= 0 {
		token = token[idx+1:]
	}
	return token
}
