// Copyright 2025 The utzip authors.
//
// Split-volume output: the archive writer's SplitVolume abstraction
// from spec.md §3/§4.5.

package utzip

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// SplitNamer derives the path for volume index (0-based) of an archive
// whose last volume will be written to finalPath, per spec.md §6:
// "basename.z01, basename.z02, ..., basename.zip (final)".
func SplitNamer(finalPath string) func(index uint32, last bool) string {
	dir := filepath.Dir(finalPath)
	base := strings.TrimSuffix(filepath.Base(finalPath), filepath.Ext(finalPath))
	return func(index uint32, last bool) string {
		if last {
			return finalPath
		}
		return filepath.Join(dir, fmt.Sprintf("%s.z%02d", base, index+1))
	}
}

// RotateFunc is invoked after a non-final volume is closed, letting a
// caller implement the split callback side-effects spec.md §4.5
// describes (pause/beep/verbose display) without this package knowing
// about them.
type RotateFunc func(index uint32, path string) error

// SplitWriter is an io.Writer that transparently rotates across
// multiple files once the configured split size is reached, without
// ever letting a single record straddle a volume boundary (spec.md
// §4.5: "A local header or data-descriptor must not straddle a volume
// boundary").
//
// Splitting is disabled by passing splitSize <= 0, in which case
// SplitWriter degenerates to a single file with disk number always 0.
type SplitWriter struct {
	namer     func(index uint32, last bool) string
	splitSize int64
	onRotate  RotateFunc

	cur       *os.File
	diskIndex uint32
	diskSize  int64
	closed    []string // paths of volumes closed so far, in order
}

// NewSplitWriter opens the first volume. If splitSize <= 0 the writer
// never rotates and namer is called once with last=true.
func NewSplitWriter(namer func(index uint32, last bool) string, splitSize int64, onRotate RotateFunc) (*SplitWriter, error) {
	sw := &SplitWriter{namer: namer, splitSize: splitSize, onRotate: onRotate}
	path := namer(0, splitSize <= 0)
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	sw.cur = f
	return sw, nil
}

// Disk returns the 0-based index of the volume currently being
// written.
func (sw *SplitWriter) Disk() uint32 { return sw.diskIndex }

// Offset returns the byte offset within the current volume.
func (sw *SplitWriter) Offset() int64 { return sw.diskSize }

// ReserveRecord rotates to a new volume first if writing n more bytes
// as a single record would cross the split boundary, per spec.md §4.5.
// Compressed payload bytes are exempt -- callers stream those through
// Write directly, which is allowed to span volumes.
func (sw *SplitWriter) ReserveRecord(n int64) error {
	if sw.splitSize <= 0 {
		return nil
	}
	if sw.diskSize > 0 && sw.diskSize+n > sw.splitSize {
		return sw.rotate()
	}
	return nil
}

func (sw *SplitWriter) rotate() error {
	oldPath := sw.cur.Name()
	if err := sw.cur.Close(); err != nil {
		return err
	}
	sw.closed = append(sw.closed, oldPath)
	if sw.onRotate != nil {
		if err := sw.onRotate(sw.diskIndex, oldPath); err != nil {
			return err
		}
	}
	sw.diskIndex++
	sw.diskSize = 0
	path := sw.namer(sw.diskIndex, false)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	sw.cur = f
	return nil
}

// Write implements io.Writer. For payload streams larger than the
// remaining space in the current volume, Write rotates mid-stream --
// compressed payload bytes are explicitly allowed to span volumes per
// spec.md §4.5.
func (sw *SplitWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if sw.splitSize > 0 && sw.diskSize >= sw.splitSize {
			if err := sw.rotate(); err != nil {
				return total, err
			}
		}
		chunk := p
		if sw.splitSize > 0 {
			remaining := sw.splitSize - sw.diskSize
			if int64(len(chunk)) > remaining {
				chunk = chunk[:remaining]
			}
		}
		n, err := sw.cur.Write(chunk)
		total += n
		sw.diskSize += int64(n)
		p = p[n:]
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// FinishFinal closes the volume currently being written, which is the
// final one, and returns the full ordered list of volume paths. When
// splitting is enabled, every volume is created under its .zNN name, so
// FinishFinal renames the last one to the path namer gives for
// last=true (the archive's own name).
func (sw *SplitWriter) FinishFinal() ([]string, error) {
	finalPath := sw.cur.Name()
	if err := sw.cur.Close(); err != nil {
		return nil, err
	}
	if sw.splitSize > 0 {
		last := sw.namer(sw.diskIndex, true)
		if err := os.Rename(finalPath, last); err != nil {
			return nil, err
		}
		finalPath = last
	}
	return append(append([]string{}, sw.closed...), finalPath), nil
}

var _ io.Writer = (*SplitWriter)(nil)
