// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package utzip

// extraRecord is one tagged record inside a FileHeader.Extra blob
// (spec.md §3: "extra field (ordered sequence of tagged records)").
type extraRecord struct {
	tag     uint16
	payload []byte
}

// parseExtra decodes an extra-field blob into its tagged records,
// ignoring any trailing bytes that don't form a complete record (seen
// in the wild from non-conforming writers).
func parseExtra(extra []byte) []extraRecord {
	var records []extraRecord
	b := readBuf(extra)
	for len(b) >= 4 {
		tag := b.uint16()
		size := int(b.uint16())
		if size > len(b) {
			break
		}
		records = append(records, extraRecord{tag: tag, payload: b.sub(size)})
	}
	return records
}

// findExtra returns the first record matching tag, if any.
func findExtra(extra []byte, tag uint16) ([]byte, bool) {
	for _, r := range parseExtra(extra) {
		if r.tag == tag {
			return r.payload, true
		}
	}
	return nil, false
}

// prepareEntry finalizes the header fields the writer is responsible
// for filling in before a FileHeader is serialized: the UTF-8 flag bit
// decision, creator/reader version, the mandatory extended-timestamp
// extra field, and directory-specific zeroing (spec.md §4.1, §3).
func prepareEntry(fh *FileHeader) {
	// Officially, ZIP uses CP-437, unless the UTF-8 flag bit is set.
	// Many readers interpret an unset flag as the local system
	// encoding, so the UTF-8 bit is only set when the name/comment
	// actually require it, to avoid breaking CP-437-only readers.
	utf8Valid1, utf8Require1 := detectUTF8(fh.Name)
	utf8Valid2, utf8Require2 := detectUTF8(fh.Comment)
	switch {
	case fh.NonUTF8:
		fh.Flags &^= flagUTF8
	case (utf8Require1 || utf8Require2) && (utf8Valid1 && utf8Valid2):
		fh.Flags |= flagUTF8
	}

	fh.CreatorVersion = fh.CreatorVersion&0xff00 | zipVersion20
	fh.ReaderVersion = zipVersion20

	fh.Extra = append(fh.Extra, encodeExtendedTimestamp(fh.Modified)...)

	if fh.IsDir() {
		// Store ensures the size fields the local header always
		// writes for zero-length content are actually zero.
		fh.Method = Store
		fh.Flags &^= flagDataDescriptor
		fh.CompressedSize64 = 0
		fh.UncompressedSize64 = 0
		fh.CRC32 = 0
	} else {
		fh.SetStreaming(true)
	}

	if fh.Encrypted {
		fh.Flags |= flagEncrypted
	}
}
