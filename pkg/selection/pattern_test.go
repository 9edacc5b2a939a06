// Copyright 2025 The utzip authors.

package selection

import "testing"

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern  string
		name     string
		boundary bool
		want     bool
	}{
		{"*.txt", "a.txt", false, true},
		{"*.txt", "dir/a.txt", false, true}, // * crosses '/' by default
		{"*.txt", "dir/a.txt", true, false}, // boundary set: * stops at '/'
		{"doc/*", "doc/a.md", true, true},
		{"doc/?.md", "doc/a.md", false, true},
		{"doc/?.md", "doc/ab.md", false, false},
		{"[abc].txt", "b.txt", false, true},
		{"[!abc].txt", "b.txt", false, false},
		{"[a-c].txt", "c.txt", false, true},
		{"src/*.rs", "doc/a.md", false, false},
	}
	for _, tc := range tests {
		got := MatchPattern(tc.pattern, tc.name, tc.boundary)
		if got != tc.want {
			t.Errorf("MatchPattern(%q, %q, boundary=%v) = %v, want %v", tc.pattern, tc.name, tc.boundary, got, tc.want)
		}
	}
}

func TestIncluded(t *testing.T) {
	include := []string{"doc/*"}
	exclude := []string{"doc/secret.md"}
	if !Included(include, exclude, "doc/a.md", true) {
		t.Error("expected doc/a.md to be included")
	}
	if Included(include, exclude, "doc/secret.md", true) {
		t.Error("expected doc/secret.md to be excluded")
	}
	if Included(include, exclude, "src/c.rs", true) {
		t.Error("expected src/c.rs to be excluded (not in include list)")
	}
	if !Included(nil, exclude, "src/c.rs", true) {
		t.Error("expected src/c.rs to be included when include list is empty")
	}
}
