package store

import "testing"

func TestSearchPatternQuotesMetacharacters(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"alice", "alice"},
		{".*", `\.\*`},
		{"a+b", `a\+b`},
		{"(unbalanced", `\(unbalanced`},
	}
	for _, tt := range tests {
		pattern := searchPattern(tt.query)
		if got := pattern["$regex"]; got != tt.want {
			t.Errorf("searchPattern(%q): got %v, want %q", tt.query, got, tt.want)
		}
		if pattern["$options"] != "i" {
			t.Errorf("searchPattern(%q): missing case-insensitive option", tt.query)
		}
	}
}
