// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package utzip

import "time"

// msDosEpoch is the earliest date representable in the MS-DOS date/time
// pair; spec.md §4.1 requires clamping dates before 1980 to this value.
var msDosEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// timeToMsDosTime converts a time.Time to an MS-DOS date and time. The
// resolution is 2s. See:
// https://msdn.microsoft.com/en-us/library/ms724274(v=VS.85).aspx
func timeToMsDosTime(t time.Time) (fDate uint16, fTime uint16) {
	if t.Before(msDosEpoch) {
		t = msDosEpoch
	}
	fDate = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	fTime = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return
}

// msDosTimeToTime converts an MS-DOS date and time pair back to a
// time.Time in the given location (usually time.Local, respecting TZ
// per spec.md §6).
func msDosTimeToTime(loc *time.Location, fDate, fTime uint16) time.Time {
	return time.Date(
		int(fDate>>9)+1980,
		time.Month(fDate>>5&0xf),
		int(fDate&0x1f),
		int(fTime>>11),
		int(fTime>>5&0x3f),
		int(fTime&0x1f)*2,
		0,
		loc,
	)
}

// encodeExtendedTimestamp builds a UT (0x5455) extra field record
// carrying only the modification time, as Info-ZIP does (spec.md §4.1).
func encodeExtendedTimestamp(modified time.Time) []byte {
	var buf [extTimeExtraLen]byte
	mt := uint32(modified.Unix())
	b := writeBuf(buf[:])
	b.uint16(extTimeExtraID)
	b.uint16(5) // flags byte + 4 byte timestamp
	b.uint8(1)  // flags: ModTime present
	b.uint32(mt)
	return buf[:]
}

// decodeExtendedTimestamp extracts the modification time from a UT
// extra field payload (tag and length already stripped), per spec.md
// §4.1: "one byte of flags plus up to three 4-byte Unix timestamps ...
// mod-time is mandatory when the field is present."
func decodeExtendedTimestamp(payload []byte) (time.Time, bool) {
	if len(payload) < 5 {
		return time.Time{}, false
	}
	flags := payload[0]
	if flags&0x1 == 0 {
		return time.Time{}, false
	}
	b := readBuf(payload[1:5])
	return time.Unix(int64(b.uint32()), 0), true
}
