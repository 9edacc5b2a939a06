// Copyright 2025 The utzip authors.

package modes

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/nullvector/utzip"
	"github.com/nullvector/utzip/pkg/selection"
)

func TestRunPlanAddsFilesystemEntries(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(srcPath, []byte("hello, gophers"), 0o644); err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(dir, "out.zip")
	sv, err := utzip.NewSplitWriter(utzip.SplitNamer(outPath), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	w := utzip.NewWriter(sv, utzip.DefaultConfig(), "")

	plan := []selection.Entry{
		{
			ArchivePath: "a.txt",
			Action:      selection.Add,
			FS:          &selection.Candidate{ArchivePath: "a.txt", FSPath: srcPath},
		},
	}
	resolver := DefaultResolver{Cfg: utzip.DefaultConfig(), Method: utzip.Deflate}

	skipped, err := RunPlan(w, nil, plan, resolver)
	if err != nil {
		t.Fatalf("RunPlan: %v", err)
	}
	if len(skipped) != 0 {
		t.Fatalf("unexpected skipped entries: %v", skipped)
	}
	if _, err := w.Close(); err != nil {
		t.Fatalf("Writer.Close: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	st, _ := f.Stat()
	zr, err := zip.NewReader(f, st.Size())
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "a.txt" {
		t.Fatalf("unexpected entries: %+v", zr.File)
	}
}

func TestRunPlanSkipsUnreadableSource(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.zip")
	sv, err := utzip.NewSplitWriter(utzip.SplitNamer(outPath), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	w := utzip.NewWriter(sv, utzip.DefaultConfig(), "")

	plan := []selection.Entry{
		{
			ArchivePath: "missing.txt",
			Action:      selection.Add,
			FS:          &selection.Candidate{ArchivePath: "missing.txt", FSPath: filepath.Join(dir, "missing.txt")},
		},
	}
	resolver := DefaultResolver{Cfg: utzip.DefaultConfig(), Method: utzip.Deflate}

	skipped, err := RunPlan(w, nil, plan, resolver)
	if err != nil {
		t.Fatalf("RunPlan returned fatal error for a recoverable source failure: %v", err)
	}
	if len(skipped) != 1 || skipped[0] != "missing.txt" {
		t.Fatalf("skipped = %v, want [missing.txt]", skipped)
	}
}
