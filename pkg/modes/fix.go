// Copyright 2025 The utzip authors.
//
// Fix mode (spec.md §4.7): -F walks a readable central directory and
// raw-copies every entry that verifies; --FF ignores the central
// directory entirely and rebuilds from fix.go's salvage scan.

package modes

import (
	"compress/bzip2"
	"compress/flate"
	"context"
	"hash/crc32"
	"io"

	"github.com/nullvector/utzip"
	"github.com/nullvector/utzip/pkg/zerr"
)

// localHeaderFixedLen is APPNOTE's fixed local-header length (signature
// through extra-length, before the variable-length name/extra), a
// stable format constant rather than an implementation detail, so
// hardcoding it here (mirroring fileHeaderLen in entry.go, which is
// unexported) does not tie this package to the root package's layout.
const localHeaderFixedLen = 30

// FixNormal implements spec.md §4.7's -F mode: "read the old archive's
// central directory; for each entry whose local header can be read and
// whose CRC/sizes verify, CopyRaw into a new archive; drop unreadable
// entries."
func FixNormal(w *utzip.Writer, r *utzip.Reader) (recovered, dropped int, err error) {
	for _, fh := range r.Entries {
		if !verifyEntry(r, fh) {
			dropped++
			continue
		}
		raw, rawLen, err := r.RawCopy(fh)
		if err != nil {
			dropped++
			continue
		}
		if err := w.CopyRawEntry(fh, raw, rawLen); err != nil {
			return recovered, dropped, zerr.Wrap(zerr.IoFailure, err)
		}
		recovered++
	}
	return recovered, dropped, nil
}

// verifyEntry re-derives an entry's CRC-32 and uncompressed size by
// decompressing its raw payload and compares them against the central
// directory's recorded values. Encrypted entries can't be verified without the password, so
// they're accepted on structural grounds alone (the local header read
// cleanly); this mirrors the test-side decode helper in
// writer_test.go, applied here for recovery rather than assertions.
func verifyEntry(r *utzip.Reader, fh *utzip.FileHeader) bool {
	raw, _, err := r.RawCopy(fh)
	if err != nil {
		return false
	}
	skip := int64(localHeaderFixedLen + len(fh.Name) + len(fh.Extra))
	if _, err := io.CopyN(io.Discard, raw, skip); err != nil {
		return false
	}
	if fh.Encrypted {
		return true
	}

	limited := io.LimitReader(raw, int64(fh.CompressedSize64))
	var decoded io.Reader
	switch fh.Method {
	case utzip.Store:
		decoded = limited
	case utzip.Deflate:
		decoded = flate.NewReader(limited)
	case utzip.Bzip2:
		decoded = bzip2.NewReader(limited)
	default:
		return false
	}

	hasher := crc32.NewIEEE()
	n, err := io.Copy(hasher, decoded)
	if err != nil {
		return false
	}
	return n == int64(fh.UncompressedSize64) && hasher.Sum32() == fh.CRC32
}

// FixFullResult is one entry FixFull recovered and copied into the
// rebuilt archive.
type FixFullResult struct {
	Name  string
	Bytes uint64
}

// FixFull implements spec.md §4.7's --FF mode: scan srcPath (and its
// split volumes) for local-header signatures via the root package's
// FixFull salvage scan, then copy each recovered entry's payload into
// w. Entries are deduplicated by name, keeping the first (earliest
// scan-order) occurrence, since a later collision is more likely a
// signature found inside compressed data than a genuine second entry.
func FixFull(ctx context.Context, w *utzip.Writer, srcPath string) ([]FixFullResult, error) {
	salvaged, err := utzip.FixFull(ctx, srcPath)
	if err != nil && len(salvaged) == 0 {
		return nil, zerr.Wrap(zerr.InvalidArchive, err)
	}

	span, total, closeSpan, err := utzip.OpenVolumeSpan(srcPath)
	if err != nil {
		return nil, zerr.Wrap(zerr.IoFailure, err)
	}
	defer closeSpan()

	seen := make(map[string]bool, len(salvaged))
	var results []FixFullResult
	for i, entry := range salvaged {
		if seen[entry.Name] {
			continue
		}
		seen[entry.Name] = true

		headerLen := int64(localHeaderFixedLen + len(entry.Name) + len(entry.Extra))
		dataStart := int64(entry.LocalHeaderOffset) + headerLen
		dataLen := int64(entry.CompressedSize64)
		if entry.HasDataDescriptor {
			// The local header's size fields are unreliable when a
			// data descriptor trails the payload; fall back to
			// "everything up to the next recovered header" as a
			// best-effort boundary, per spec.md §4.7's "best-effort
			// archive" framing.
			dataLen = nextBoundary(salvaged, i, total) - dataStart
		}
		if dataLen < 0 {
			continue
		}

		fh := entry.FileHeader
		fh.CompressedSize64 = uint64(dataLen)
		raw := io.NewSectionReader(spanReaderAt{span, ctx}, int64(entry.LocalHeaderOffset), headerLen+dataLen)
		if err := w.CopyRawEntry(&fh, raw, headerLen+dataLen); err != nil {
			continue
		}
		results = append(results, FixFullResult{Name: fh.Name, Bytes: uint64(dataLen)})
	}
	return results, nil
}

func nextBoundary(salvaged []utzip.SalvagedEntry, i int, total int64) int64 {
	if i+1 < len(salvaged) {
		return int64(salvaged[i+1].LocalHeaderOffset)
	}
	return total
}

// spanReaderAt adapts utzip.ReaderAt (context-taking) to io.ReaderAt
// for io.SectionReader, which predates context support.
type spanReaderAt struct {
	ra  utzip.ReaderAt
	ctx context.Context
}

func (s spanReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return s.ra.ReadAtContext(s.ctx, p, off)
}
