// Copyright 2025 The utzip authors.

package utzip

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
)

// writeSplitStoreArchive writes a Store-method, multi-volume archive
// small enough that splitSize forces at least one rotation mid-entry,
// exercising volumeSpan's cross-volume addressing.
func writeSplitStoreArchive(t *testing.T, path string, splitSize int64, entries map[string][]byte) {
	t.Helper()
	sv, err := NewSplitWriter(SplitNamer(path), splitSize, nil)
	if err != nil {
		t.Fatal(err)
	}
	w := NewWriter(sv, DefaultConfig(), "")
	for _, name := range []string{"a.txt", "b.txt"} {
		data, ok := entries[name]
		if !ok {
			continue
		}
		fh := &FileHeader{Name: name, Method: Store}
		fh.SetStreaming(true)
		if err := w.AddEntry(fh, bytes.NewReader(data), PipelineOptions{Method: Store}); err != nil {
			t.Fatalf("AddEntry(%q): %v", name, err)
		}
	}
	if _, err := w.Close(); err != nil {
		t.Fatalf("Writer.Close: %v", err)
	}
}

func TestVolumeSpanReadsAcrossVolumeBoundary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.zip")
	// Small enough that the two entries plus headers straddle more than
	// one 256-byte volume.
	writeSplitStoreArchive(t, path, 256, map[string][]byte{
		"a.txt": bytes.Repeat([]byte("A"), 300),
		"b.txt": bytes.Repeat([]byte("B"), 300),
	})

	span, total, closeFn, err := OpenVolumeSpan(path)
	if err != nil {
		t.Fatalf("OpenVolumeSpan: %v", err)
	}
	defer closeFn()

	if total <= 0 {
		t.Fatalf("total size = %d, want > 0", total)
	}

	// Read the whole span in one shot and confirm it matches a
	// byte-by-byte read built from many small ReadAtContext calls
	// straddling volume boundaries.
	whole := make([]byte, total)
	if _, err := span.ReadAtContext(context.Background(), whole, 0); err != nil && err != io.EOF {
		t.Fatalf("ReadAtContext(whole): %v", err)
	}

	const chunk = 17 // deliberately not a divisor of the volume size
	rebuilt := make([]byte, 0, total)
	buf := make([]byte, chunk)
	for off := int64(0); off < total; off += int64(len(buf)) {
		n, err := span.ReadAtContext(context.Background(), buf, off)
		if err != nil && err != io.EOF {
			t.Fatalf("ReadAtContext(off=%d): %v", off, err)
		}
		rebuilt = append(rebuilt, buf[:n]...)
		if n == 0 {
			break
		}
	}
	if !bytes.Equal(whole, rebuilt) {
		t.Fatalf("chunked read diverged from whole read")
	}
}

func TestVolumeSpanReadAtEOFPastEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.zip")
	writeSplitStoreArchive(t, path, 0, map[string][]byte{"a.txt": []byte("small")})

	span, total, closeFn, err := OpenVolumeSpan(path)
	if err != nil {
		t.Fatalf("OpenVolumeSpan: %v", err)
	}
	defer closeFn()

	buf := make([]byte, 4)
	if _, err := span.ReadAtContext(context.Background(), buf, total); err != io.EOF {
		t.Fatalf("ReadAtContext past end: err = %v, want io.EOF", err)
	}
}
