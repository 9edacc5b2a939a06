// Copyright 2025 The utzip authors.
//
// Full-archive salvage scan: spec.md §4.7's -FF mode, which gives up on
// a damaged or missing central directory and instead scans raw bytes
// for local-header signatures across every volume, treated as one
// contiguous address space.

package utzip

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// ReaderAt is like io.ReaderAt, but takes a context so the salvage scan
// below (and the mode engine driving it) can cancel a long read over a
// large multi-volume archive.
type ReaderAt interface {
	ReadAtContext(ctx context.Context, p []byte, off int64) (n int, err error)
}

// volumeSpan stitches a split archive's volumes into one contiguous,
// context-cancelable address space addressed by absolute byte offset.
// reader.go's crossVolumeReader addresses volumes by (disk, offset)
// because every record it reads has a known disk; the salvage scan
// below does not know in advance which disk a signature match falls on,
// so it needs one flat space to search across instead.
type volumeSpan struct {
	vs       *volumeSet
	lastDisk uint32
	bounds   []int64 // bounds[d] is the global offset where disk d ends
	size     int64
}

func newVolumeSpan(vs *volumeSet, lastDisk uint32) (*volumeSpan, error) {
	bounds := make([]int64, lastDisk+1)
	var total int64
	for disk := uint32(0); disk <= lastDisk; disk++ {
		h, err := vs.get(disk)
		if err != nil {
			return nil, err
		}
		total += h.size
		bounds[disk] = total
	}
	return &volumeSpan{vs: vs, lastDisk: lastDisk, bounds: bounds, size: total}, nil
}

func (s *volumeSpan) diskStart(disk uint32) int64 {
	if disk == 0 {
		return 0
	}
	return s.bounds[disk-1]
}

func (s *volumeSpan) ReadAtContext(ctx context.Context, p []byte, off int64) (n int, err error) {
	if off < 0 || off >= s.size {
		return 0, io.EOF
	}
	disk := uint32(sort.Search(len(s.bounds), func(i int) bool { return s.bounds[i] > off }))
	for disk <= s.lastDisk && len(p) > 0 {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		h, err := s.vs.get(disk)
		if err != nil {
			return n, err
		}
		localOff := off - s.diskStart(disk)
		avail := h.size - localOff
		toRead := int64(len(p))
		if toRead > avail {
			toRead = avail
		}
		read, readErr := h.r.ReadAt(p[:toRead], localOff)
		n += read
		off += int64(read)
		p = p[read:]
		if readErr != nil && readErr != io.EOF {
			return n, readErr
		}
		disk++
	}
	if len(p) > 0 {
		return n, io.EOF
	}
	return n, nil
}

// SalvagedEntry is one local header recovered by a full scan. Size and
// CRC fields come straight from the local header and are provisional
// whenever HasDataDescriptor is set, since a scan does not locate or
// trust the trailing descriptor -- a second pass against the raw bytes
// is needed to resolve those per spec.md §4.7's "best-effort" framing
// for -FF.
type SalvagedEntry struct {
	FileHeader
	HasDataDescriptor bool
}

var localHeaderSig = []byte{0x50, 0x4b, 0x03, 0x04}

// discoverVolumes finds every volume belonging to the split archive
// ending at finalPath, in disk order, by probing the naming convention
// from spec.md §6 rather than trusting any on-disk index.
func discoverVolumes(finalPath string) ([]string, error) {
	namer := SplitNamer(finalPath)
	var paths []string
	for i := uint32(0); ; i++ {
		p := namer(i, false)
		if _, err := os.Stat(p); err != nil {
			break
		}
		paths = append(paths, p)
	}
	if _, err := os.Stat(finalPath); err != nil {
		return nil, err
	}
	return append(paths, finalPath), nil
}

type discoveredVolumeOpener struct{ paths []string }

func (d discoveredVolumeOpener) Open(disk uint32) (io.ReaderAt, int64, error) {
	if int(disk) >= len(d.paths) {
		return nil, 0, fmt.Errorf("utzip: no volume for disk %d", disk)
	}
	f, err := os.Open(d.paths[disk])
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// OpenVolumeSpan opens every volume belonging to the split archive
// ending at finalPath as one contiguous ReaderAt, for callers (the mode
// engine's Fix-Full action) that need to copy a recovered entry's raw
// payload bytes by absolute offset after FixFull has located it. The
// returned close function releases every opened volume handle.
func OpenVolumeSpan(finalPath string) (ra ReaderAt, size int64, closeFn func() error, err error) {
	paths, err := discoverVolumes(finalPath)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("utzip: discovering volumes for %s: %w", finalPath, err)
	}
	vs := newVolumeSet(discoveredVolumeOpener{paths: paths})
	lastDisk := uint32(len(paths) - 1)
	span, err := newVolumeSpan(vs, lastDisk)
	if err != nil {
		vs.Close()
		return nil, 0, nil, err
	}
	return span, span.size, vs.Close, nil
}

// FixFull implements the -FF salvage scan: it discovers the archive's
// volumes, walks their combined bytes for the local-header signature,
// and returns every local header it can parse, in scan order,
// regardless of what the central directory says. The caller (the mode
// engine's Fix action) is responsible for deduplicating entries sharing
// a name and for re-deriving sizes of data-descriptor entries.
func FixFull(ctx context.Context, finalPath string) ([]SalvagedEntry, error) {
	paths, err := discoverVolumes(finalPath)
	if err != nil {
		return nil, fmt.Errorf("utzip: discovering volumes for %s: %w", finalPath, err)
	}

	vs := newVolumeSet(discoveredVolumeOpener{paths: paths})
	defer vs.Close()

	lastDisk := uint32(len(paths) - 1)
	span, err := newVolumeSpan(vs, lastDisk)
	if err != nil {
		return nil, err
	}
	ra, total := ReaderAt(span), span.size

	var entries []SalvagedEntry
	const chunkSize = 64 * 1024
	buf := make([]byte, chunkSize)
	var offset int64
	for offset < total {
		select {
		case <-ctx.Done():
			return entries, ctx.Err()
		default:
		}

		toRead := int64(len(buf))
		if remaining := total - offset; toRead > remaining {
			toRead = remaining
		}
		n, err := ra.ReadAtContext(ctx, buf[:toRead], offset)
		if err != nil && err != io.EOF {
			return entries, err
		}
		window := buf[:n]

		for idx := 0; ; {
			rel := bytes.Index(window[idx:], localHeaderSig)
			if rel < 0 {
				break
			}
			pos := offset + int64(idx+rel)
			if entry, consumed, ok := parseSalvageHeader(ctx, ra, pos); ok {
				entries = append(entries, entry)
				idx += rel + consumed
				continue
			}
			idx += rel + 1
		}

		if n < len(localHeaderSig) {
			break
		}
		// Re-scan the signature's width at the tail of this chunk in
		// case it was split across the chunk boundary.
		offset += int64(n) - int64(len(localHeaderSig)-1)
	}
	return entries, nil
}

// parseSalvageHeader attempts to parse a local file header at pos,
// returning the recovered entry and the number of bytes its fixed
// portion plus name/extra occupy (so the scan can skip past it).
func parseSalvageHeader(ctx context.Context, ra ReaderAt, pos int64) (SalvagedEntry, int, bool) {
	fixed := make([]byte, fileHeaderLen)
	if _, err := ra.ReadAtContext(ctx, fixed, pos); err != nil {
		return SalvagedEntry{}, 0, false
	}
	b := readBuf(fixed)
	if b.uint32() != fileHeaderSignature {
		return SalvagedEntry{}, 0, false
	}
	readerVersion := b.uint16()
	flags := b.uint16()
	method := b.uint16()
	modTime := b.uint16()
	modDate := b.uint16()
	crc := b.uint32()
	compressedSize := uint64(b.uint32())
	uncompressedSize := uint64(b.uint32())
	nameLen := int(b.uint16())
	extraLen := int(b.uint16())
	if nameLen <= 0 || nameLen > 4096 || extraLen > uint16max {
		return SalvagedEntry{}, 0, false
	}

	rest := make([]byte, nameLen+extraLen)
	if _, err := ra.ReadAtContext(ctx, rest, pos+fileHeaderLen); err != nil {
		return SalvagedEntry{}, 0, false
	}
	name := string(rest[:nameLen])
	if !looksLikePath(name) {
		return SalvagedEntry{}, 0, false
	}

	fh := FileHeader{
		Name:               name,
		ReaderVersion:      readerVersion,
		Flags:              flags,
		Method:             method,
		CRC32:              crc,
		CompressedSize64:   compressedSize,
		UncompressedSize64: uncompressedSize,
		Extra:              append([]byte{}, rest[nameLen:]...),
		LocalHeaderOffset:  uint64(pos),
		Encrypted:          flags&flagEncrypted != 0,
		Modified:           msDosTimeToTime(time.Local, modDate, modTime),
	}
	return SalvagedEntry{FileHeader: fh, HasDataDescriptor: flags&flagDataDescriptor != 0}, fileHeaderLen + nameLen + extraLen, true
}

// looksLikePath rejects byte runs that matched the signature by chance
// rather than because they're really a local header's filename: no NUL
// bytes and no raw control characters.
func looksLikePath(s string) bool {
	for _, r := range s {
		if r == 0 || (r < 0x20 && r != '\t') {
			return false
		}
	}
	return true
}
