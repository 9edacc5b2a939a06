// Copyright 2025 The utzip authors.

package utzip

import (
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/flate"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mustWriteArchive(t *testing.T, path string, splitSize int64, password string, add func(w *Writer)) ArchiveFileInfo {
	t.Helper()
	sv, err := NewSplitWriter(SplitNamer(path), splitSize, nil)
	if err != nil {
		t.Fatalf("NewSplitWriter: %v", err)
	}
	w := NewWriter(sv, DefaultConfig(), password)
	add(w)
	info, err := w.Close()
	if err != nil {
		t.Fatalf("Writer.Close: %v", err)
	}
	return info
}

func TestWriterRoundTripStdlibReader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.zip")

	entries := []struct {
		name   string
		data   []byte
		method uint16
	}{
		{"foo.txt", []byte("Rabbits, guinea pigs, gophers, marsupial rats, and quolls."), Store},
		{"bar.txt", bytes.Repeat([]byte("gopher"), 5000), Deflate},
		{"こんにちは.txt", []byte("in the world"), Deflate},
		{"dir/", nil, Store},
	}

	mustWriteArchive(t, path, 0, "", func(w *Writer) {
		for _, e := range entries {
			fh := &FileHeader{Name: e.name, Modified: time.Now()}
			if err := w.AddEntry(fh, bytes.NewReader(e.data), PipelineOptions{Method: e.method}); err != nil {
				t.Fatalf("AddEntry(%q): %v", e.name, err)
			}
		}
	})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(f, st.Size())
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(zr.File), len(entries))
	}
	for i, e := range entries {
		zf := zr.File[i]
		if zf.Name != e.name {
			t.Errorf("entry %d: name = %q, want %q", i, zf.Name, e.name)
		}
		if e.name == "dir/" {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			t.Fatalf("entry %d Open: %v", i, err)
		}
		got, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("entry %d ReadAll: %v", i, err)
		}
		if !bytes.Equal(got, e.data) {
			t.Errorf("entry %d content mismatch", i)
		}
	}
}

func TestWriterComment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.zip")
	const comment = "hi, こんにちわ"

	info := mustWriteArchive(t, path, 0, "", func(w *Writer) {
		if err := w.SetComment(comment); err != nil {
			t.Fatalf("SetComment: %v", err)
		}
	})
	if info.Comment != comment {
		t.Errorf("ArchiveFileInfo.Comment = %q, want %q", info.Comment, comment)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	st, _ := f.Stat()
	zr, err := zip.NewReader(f, st.Size())
	if err != nil {
		t.Fatal(err)
	}
	if zr.Comment != comment {
		t.Errorf("Reader.Comment = %q, want %q", zr.Comment, comment)
	}
}

func TestWriterDuplicateName(t *testing.T) {
	sv, err := NewSplitWriter(SplitNamer(filepath.Join(t.TempDir(), "out.zip")), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	w := NewWriter(sv, DefaultConfig(), "")
	if err := w.AddEntry(&FileHeader{Name: "a.txt"}, bytes.NewReader(nil), PipelineOptions{Method: Store}); err != nil {
		t.Fatal(err)
	}
	err = w.AddEntry(&FileHeader{Name: "a.txt"}, bytes.NewReader(nil), PipelineOptions{Method: Store})
	if !errors.Is(err, errDuplicateName) {
		t.Fatalf("got error %v, want errDuplicateName", err)
	}
}

func TestWriterEncryption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.zip")
	const password = "swordfish"
	const secret = "the gophers meet at midnight"

	mustWriteArchive(t, path, 0, password, func(w *Writer) {
		fh := &FileHeader{Name: "secret.txt", Modified: time.Now(), Encrypted: true}
		if err := w.AddEntry(fh, bytes.NewReader([]byte(secret)), PipelineOptions{Method: Deflate}); err != nil {
			t.Fatalf("AddEntry: %v", err)
		}
	})

	r, err := OpenReader(path, DefaultConfig())
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	if len(r.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(r.Entries))
	}
	fh := r.Entries[0]
	if !fh.Encrypted {
		t.Fatalf("entry not marked Encrypted")
	}

	got := decodeEntry(t, r, fh, password)
	if string(got) != secret {
		t.Errorf("decoded content = %q, want %q", got, secret)
	}
}

func TestWriterSplitVolumes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.zip")
	data := bytes.Repeat([]byte("0123456789"), 500) // 5000 bytes, incompressible-ish due to Store

	info := mustWriteArchive(t, path, 2048, "", func(w *Writer) {
		for i := 0; i < 4; i++ {
			fh := &FileHeader{Name: fileNameForIndex(i), Modified: time.Now()}
			if err := w.AddEntry(fh, bytes.NewReader(data), PipelineOptions{Method: Store}); err != nil {
				t.Fatalf("AddEntry: %v", err)
			}
		}
	})
	if len(info.Volumes) < 2 {
		t.Fatalf("got %d volumes, want at least 2", len(info.Volumes))
	}
	for _, v := range info.Volumes {
		if _, err := os.Stat(v); err != nil {
			t.Errorf("volume %s missing: %v", v, err)
		}
	}

	r, err := OpenReader(path, DefaultConfig())
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	if len(r.Entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(r.Entries))
	}
	for _, fh := range r.Entries {
		got := decodeEntry(t, r, fh, "")
		if !bytes.Equal(got, data) {
			t.Errorf("entry %q: content mismatch across volumes", fh.Name)
		}
	}
}

func fileNameForIndex(i int) string {
	return string(rune('a'+i)) + ".bin"
}

// decodeEntry reads entry's raw record back out of r, undoes ZipCrypto
// (when present) and the compression method, and returns the plaintext.
// It is the test-side mirror of the pipeline in pipeline.go.
func decodeEntry(t *testing.T, r *Reader, fh *FileHeader, password string) []byte {
	t.Helper()
	raw, _, err := r.RawCopy(fh)
	if err != nil {
		t.Fatalf("RawCopy(%q): %v", fh.Name, err)
	}
	skip := int64(fileHeaderLen + len(fh.Name) + len(fh.Extra))
	if _, err := io.CopyN(io.Discard, raw, skip); err != nil {
		t.Fatalf("skipping local header: %v", err)
	}

	var src io.Reader = raw
	compressedLen := int64(fh.CompressedSize64)
	if fh.Encrypted {
		dec, _, err := newZipCryptoDecryptor(raw, password)
		if err != nil {
			t.Fatalf("newZipCryptoDecryptor: %v", err)
		}
		src = dec
		compressedLen -= zipCryptoHeadLen
	}
	limited := io.LimitReader(src, compressedLen)

	var out io.Reader
	switch fh.Method {
	case Store:
		out = limited
	case Deflate:
		out = flate.NewReader(limited)
	case Bzip2:
		out = bzip2.NewReader(limited)
	default:
		t.Fatalf("unsupported method %d", fh.Method)
	}
	data, err := io.ReadAll(out)
	if err != nil {
		t.Fatalf("decompressing %q: %v", fh.Name, err)
	}
	return data
}
