package fingerprint

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Overview ", "overview"},
		{"Campaign\n  Details", "campaign details"},
		{"ＫＰＩ", "kpi"}, // full-width letters fold under NFKC
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOf(t *testing.T) {
	a := Of("metric", "Total Impressions", "18,000")
	b := Of("metric", "total  impressions", "18,000")
	if a != b {
		t.Errorf("normalized-equal fields differ: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("len(Of) = %d, want 32", len(a))
	}

	if Of("metric", "ab", "c") == Of("metric", "a", "bc") {
		t.Error("field boundaries must change the fingerprint")
	}
	if Of("metric", "x") == Of("filter", "x") {
		t.Error("kind must change the fingerprint")
	}
}

func TestGrid(t *testing.T) {
	headers := []string{"Campaign", "Impressions"}
	rows := [][]string{{"A", "10,000"}}

	a := Of("table", Grid(headers, rows)...)
	b := Of("table", Grid([]string{"campaign", "impressions"}, [][]string{{"a", "10,000"}})...)
	if a != b {
		t.Error("case-only differences should not change a table fingerprint")
	}

	// Moving a cell across a row boundary is a different table.
	c := Of("table", Grid(headers, [][]string{{"A"}, {"10,000"}})...)
	if a == c {
		t.Error("row boundaries must change the fingerprint")
	}
}

func TestContent(t *testing.T) {
	if Content("<p>a</p>") != Content("<p>a</p>") {
		t.Error("Content is not deterministic")
	}
	if Content("<p>a</p>") == Content("<p>A</p>") {
		t.Error("Content must be exact, not normalized")
	}
}
