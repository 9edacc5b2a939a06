// Copyright 2025 The utzip authors.

package selection

import (
	"testing"
	"time"

	"github.com/nullvector/utzip"
)

func TestBuildPlanFreshenSemantics(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	old := []*utzip.FileHeader{
		{Name: "x.txt", Modified: t0},
	}
	fs := map[string]*Candidate{
		"x.txt": {ArchivePath: "x.txt", ModTime: t1},
		"y.txt": {ArchivePath: "y.txt", ModTime: t1},
	}

	plan, err := BuildPlan(ModeFreshen, fs, old, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]Action{}
	for _, e := range plan {
		got[e.ArchivePath] = e.Action
	}
	if got["x.txt"] != ReCompress {
		t.Errorf("x.txt action = %v, want ReCompress", got["x.txt"])
	}
	if got["y.txt"] != Skip {
		t.Errorf("y.txt action = %v, want Skip (freshen never adds new files)", got["y.txt"])
	}
}

func TestBuildPlanDeleteWithPattern(t *testing.T) {
	old := []*utzip.FileHeader{
		{Name: "doc/a.md"},
		{Name: "doc/b.md"},
		{Name: "src/c.rs"},
	}
	filter := Filter{UserPatterns: []string{"doc/*"}, NoWildcardsBoundary: true}

	plan, err := BuildPlan(ModeDelete, nil, old, filter)
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]Action{}
	for _, e := range plan {
		got[e.ArchivePath] = e.Action
	}
	if got["doc/a.md"] != Delete || got["doc/b.md"] != Delete {
		t.Errorf("expected doc/* entries deleted, got %v", got)
	}
	if got["src/c.rs"] != CopyRaw {
		t.Errorf("src/c.rs action = %v, want CopyRaw", got["src/c.rs"])
	}
}

func TestBuildPlanFileSyncDeletesMissing(t *testing.T) {
	old := []*utzip.FileHeader{
		{Name: "stale.txt"},
	}
	plan, err := BuildPlan(ModeFileSync, map[string]*Candidate{}, old, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan) != 1 || plan[0].Action != Delete {
		t.Fatalf("expected stale.txt to be Deleted, got %+v", plan)
	}
}

func TestBuildPlanAddModeCopyRawsUnchangedEntries(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	old := []*utzip.FileHeader{
		{Name: "unchanged.txt", Modified: t0},
		{Name: "touched.txt", Modified: t0},
	}
	fs := map[string]*Candidate{
		"unchanged.txt": {ArchivePath: "unchanged.txt", ModTime: t0},
		"touched.txt":   {ArchivePath: "touched.txt", ModTime: t1},
	}

	plan, err := BuildPlan(ModeAdd, fs, old, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]Action{}
	for _, e := range plan {
		got[e.ArchivePath] = e.Action
	}
	if got["unchanged.txt"] != CopyRaw {
		t.Errorf("unchanged.txt action = %v, want CopyRaw (spec.md §4.6 add row, FS not newer)", got["unchanged.txt"])
	}
	if got["touched.txt"] != ReCompress {
		t.Errorf("touched.txt action = %v, want ReCompress (spec.md §4.6 add row, FS newer)", got["touched.txt"])
	}
}

func TestBuildPlanAcceptsUniqueArchivePaths(t *testing.T) {
	// fsCandidates is a Go map, so it cannot carry two rows with the
	// same archive-path; this checks that a map of unique paths builds
	// a plan without error.
	fs := map[string]*Candidate{"a.txt": {ArchivePath: "a.txt"}}
	if _, err := BuildPlan(ModeAdd, fs, nil, Filter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
