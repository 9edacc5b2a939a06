// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package utzip

// zip64Fields mirrors the subset of a central-directory record that can
// be ZIP64-promoted, in the canonical order spec.md §4.1 requires:
// uncompressed-size, compressed-size, local-header-offset, then the
// 4-byte disk-start-number (only when the 16-bit disk field itself is
// the 0xFFFF sentinel).
type zip64Fields struct {
	uncompressedSize *uint64
	compressedSize   *uint64
	localOffset      *uint64
	diskStart        *uint32
}

// encodeZip64Extra builds a tag-0x0001 extra field record containing
// only the fields that were promoted, in canonical order.
func encodeZip64Extra(f zip64Fields) []byte {
	size := 0
	if f.uncompressedSize != nil {
		size += 8
	}
	if f.compressedSize != nil {
		size += 8
	}
	if f.localOffset != nil {
		size += 8
	}
	if f.diskStart != nil {
		size += 4
	}
	buf := make([]byte, 4+size)
	b := writeBuf(buf)
	b.uint16(zip64ExtraID)
	b.uint16(uint16(size))
	if f.uncompressedSize != nil {
		b.uint64(*f.uncompressedSize)
	}
	if f.compressedSize != nil {
		b.uint64(*f.compressedSize)
	}
	if f.localOffset != nil {
		b.uint64(*f.localOffset)
	}
	if f.diskStart != nil {
		b.uint32(*f.diskStart)
	}
	return buf
}

// decodeZip64Extra parses a tag-0x0001 payload (tag/length already
// stripped). Which fields are present is determined by the caller based
// on which sentinel 32-bit values appeared in the surrounding record,
// since the ZIP64 extra field carries no field tags of its own -- it is
// a positional record whose shape depends on context.
func decodeZip64Extra(payload []byte, wantUncompressed, wantCompressed, wantOffset, wantDisk bool) zip64Fields {
	var out zip64Fields
	b := readBuf(payload)
	if wantUncompressed && len(b) >= 8 {
		v := b.uint64()
		out.uncompressedSize = &v
	}
	if wantCompressed && len(b) >= 8 {
		v := b.uint64()
		out.compressedSize = &v
	}
	if wantOffset && len(b) >= 8 {
		v := b.uint64()
		out.localOffset = &v
	}
	if wantDisk && len(b) >= 4 {
		v := b.uint32()
		out.diskStart = &v
	}
	return out
}
