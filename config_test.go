// Copyright 2025 The utzip authors.

package utzip

import (
	"testing"
	"time"
)

func TestConfigForcesStore(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		name string
		want bool
	}{
		{"archive.zip", true},
		{"backup.arj", true},
		{"notes.txt", false},
		{"photo.jpg", false},
	}
	for _, c := range cases {
		if got := cfg.ForcesStore(c.name); got != c.want {
			t.Errorf("ForcesStore(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestConfigLocationDefaultsToLocal(t *testing.T) {
	var cfg Config
	if cfg.location() != time.Local {
		t.Fatalf("zero-value Config.location() did not default to time.Local")
	}
}
