package textutil

import "strings"

// Truncate shortens s to max runes, appending "..." when content was cut.
// Values of max below 4 return the untruncated string.
func Truncate(s string, max int) string {
	if max < 4 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// CellDisplay normalizes a cell address for display by stripping absolute
// reference markers, so "$B$12" renders as "B12".
func CellDisplay(cell string) string {
	return strings.ReplaceAll(strings.TrimSpace(cell), "$", "")
}

// Ternary is a generic conditional helper that returns a if cond is true, b otherwise.
func Ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}
