// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package utzip

import (
	"hash/crc32"
	"unicode/utf8"
)

// detectUTF8 reports whether s is a valid UTF-8 string, and whether the
// string must be considered UTF-8 encoding (i.e., not compatible with
// CP-437, ASCII, or any other common encoding).
func detectUTF8(s string) (valid, require bool) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		// Officially, ZIP uses CP-437, but many readers use the
		// system's local character encoding. Most encodings are
		// compatible with a large subset of CP-437, which itself is
		// ASCII-like.
		//
		// Forbid 0x7e and 0x5c since EUC-KR and Shift-JIS replace
		// those characters with localized currency and overline
		// characters.
		if r < 0x20 || r > 0x7d || r == 0x5c {
			if !utf8.ValidRune(r) || (r == utf8.RuneError && size == 1) {
				return false, false
			}
			require = true
		}
	}
	return true, require
}

// encodeUnicodePathExtra builds a tag-0x7075 Unicode Path extra field:
// version(1)=1, CRC-32 of the unencoded (raw-bytes) name, then the UTF-8
// bytes of the path, per spec.md §6.
func encodeUnicodePathExtra(rawName []byte, utf8Name string) []byte {
	buf := make([]byte, 4+1+4+len(utf8Name))
	b := writeBuf(buf)
	b.uint16(unicodePathID)
	b.uint16(uint16(1 + 4 + len(utf8Name)))
	b.uint8(1)
	b.uint32(crc32.ChecksumIEEE(rawName))
	copy(buf[9:], utf8Name)
	return buf
}

// decodeUnicodePathExtra validates and extracts the UTF-8 path from a
// tag-0x7075 payload (tag/length stripped), checking the embedded CRC-32
// against the entry's raw name as the field's version-1 layout requires.
func decodeUnicodePathExtra(payload []byte, rawName []byte) (string, bool) {
	if len(payload) < 5 || payload[0] != 1 {
		return "", false
	}
	b := readBuf(payload[1:5])
	wantCRC := b.uint32()
	if wantCRC != crc32.ChecksumIEEE(rawName) {
		return "", false
	}
	return string(payload[5:]), true
}
