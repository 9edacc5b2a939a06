// Copyright 2025 The utzip authors.

package staging

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

var stagingNameRE = regexp.MustCompile(`^zi[0-9a-f]{6}$`)

func TestNewCreatesNamedStagingFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.zip")

	s, err := New(dest, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Abort()

	if !stagingNameRE.MatchString(filepath.Base(s.Path())) {
		t.Errorf("staging file name %q does not match zi<6 hex>", filepath.Base(s.Path()))
	}
	if filepath.Dir(s.Path()) != dir {
		t.Errorf("staging file created in %q, want %q", filepath.Dir(s.Path()), dir)
	}
}

func TestCommitRenamesOverDestination(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.zip")

	s, err := New(dest, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.File().WriteString("archive bytes"); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile(dest): %v", err)
	}
	if string(got) != "archive bytes" {
		t.Errorf("dest content = %q, want %q", got, "archive bytes")
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Errorf("staging file %q still exists after commit", s.Path())
	}
}

func TestAbortRemovesStagingFileAndLeavesDestAlone(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.zip")
	if err := os.WriteFile(dest, []byte("original"), 0o666); err != nil {
		t.Fatal(err)
	}

	s, err := New(dest, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.File().WriteString("garbage")
	s.Abort()

	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Errorf("staging file still exists after Abort")
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "original" {
		t.Errorf("dest was modified by Abort: %q", got)
	}
}

func TestNewUsesExplicitTempDir(t *testing.T) {
	outDir := t.TempDir()
	tmpDir := t.TempDir()
	dest := filepath.Join(outDir, "out.zip")

	s, err := New(dest, tmpDir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Abort()
	if filepath.Dir(s.Path()) != tmpDir {
		t.Errorf("staging file created in %q, want tempDir %q", filepath.Dir(s.Path()), tmpDir)
	}
}
