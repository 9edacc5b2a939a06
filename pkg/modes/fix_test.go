// Copyright 2025 The utzip authors.

package modes

import (
	"bytes"
	"context"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nullvector/utzip"
)

func writeStoreArchive(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()
	sv, err := utzip.NewSplitWriter(utzip.SplitNamer(path), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	w := utzip.NewWriter(sv, utzip.DefaultConfig(), "")
	for name, data := range entries {
		fh := &utzip.FileHeader{
			Name:               name,
			Modified:           time.Now(),
			Method:             utzip.Store,
			CRC32:              crc32.ChecksumIEEE(data),
			CompressedSize64:   uint64(len(data)),
			UncompressedSize64: uint64(len(data)),
		}
		if err := w.AddEntry(fh, bytes.NewReader(data), utzip.PipelineOptions{Method: utzip.Store}); err != nil {
			t.Fatalf("AddEntry(%q): %v", name, err)
		}
	}
	if _, err := w.Close(); err != nil {
		t.Fatalf("Writer.Close: %v", err)
	}
}

func TestFixNormalRecoversValidEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.zip")
	writeStoreArchive(t, path, map[string][]byte{
		"a.txt": []byte("alpha"),
		"b.txt": []byte("beta beta beta"),
	})

	r, err := utzip.OpenReader(path, utzip.DefaultConfig())
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	fixedPath := filepath.Join(dir, "fixed.zip")
	sv, err := utzip.NewSplitWriter(utzip.SplitNamer(fixedPath), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	w := utzip.NewWriter(sv, utzip.DefaultConfig(), "")

	recovered, dropped, err := FixNormal(w, r)
	if err != nil {
		t.Fatalf("FixNormal: %v", err)
	}
	if recovered != 2 || dropped != 0 {
		t.Fatalf("recovered=%d dropped=%d, want 2/0", recovered, dropped)
	}
	if _, err := w.Close(); err != nil {
		t.Fatalf("Writer.Close: %v", err)
	}

	r2, err := utzip.OpenReader(fixedPath, utzip.DefaultConfig())
	if err != nil {
		t.Fatalf("OpenReader(fixed): %v", err)
	}
	defer r2.Close()
	if len(r2.Entries) != 2 {
		t.Fatalf("got %d entries in fixed archive, want 2", len(r2.Entries))
	}
}

func TestFixFullScansLocalHeaders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.zip")
	writeStoreArchive(t, path, map[string][]byte{
		"only.txt": []byte("recoverable content"),
	})

	fixedPath := filepath.Join(dir, "salvaged.zip")
	sv, err := utzip.NewSplitWriter(utzip.SplitNamer(fixedPath), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	w := utzip.NewWriter(sv, utzip.DefaultConfig(), "")

	results, err := FixFull(context.Background(), w, path)
	if err != nil {
		t.Fatalf("FixFull: %v", err)
	}
	if len(results) != 1 || results[0].Name != "only.txt" {
		t.Fatalf("results = %+v, want one entry named only.txt", results)
	}
	if _, err := w.Close(); err != nil {
		t.Fatalf("Writer.Close: %v", err)
	}

	if _, err := os.Stat(fixedPath); err != nil {
		t.Fatalf("salvaged archive missing: %v", err)
	}
}
