package textutil_test

import (
	"testing"

	"binder/internal/textutil"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short stays", in: "=SUM(A1:A2)", max: 40, want: "=SUM(A1:A2)"},
		{name: "long formula cut", in: "='[Budget 2025.xlsx]Sheet1'!$A$1+'[Budget 2025.xlsx]Sheet1'!$B$2", max: 20, want: "='[Budget 2025.xl..."},
		{name: "exact length stays", in: "abcd", max: 4, want: "abcd"},
		{name: "tiny max ignored", in: "abcdef", max: 3, want: "abcdef"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.Truncate(tc.in, tc.max); got != tc.want {
				t.Fatalf("Truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}
}

func TestCellDisplay(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "$A$1", want: "A1"},
		{in: "B12", want: "B12"},
		{in: " $AA$204 ", want: "AA204"},
	}
	for _, tc := range cases {
		if got := textutil.CellDisplay(tc.in); got != tc.want {
			t.Fatalf("CellDisplay(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "Budget: FY25/Q1*", want: "Budget- FY25-Q1-"},
		{in: `report<v2>?`, want: "reportv2"},
		{in: "  plain.xlsx  ", want: "plain.xlsx"},
	}
	for _, tc := range cases {
		if got := textutil.SanitizeFileName(tc.in); got != tc.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTernary(t *testing.T) {
	if got := textutil.Ternary(true, "live", "workspace"); got != "live" {
		t.Fatalf("Ternary(true) = %q, want %q", got, "live")
	}
	if got := textutil.Ternary(false, 1, 2); got != 2 {
		t.Fatalf("Ternary(false) = %d, want 2", got)
	}
}
