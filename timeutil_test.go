// Copyright 2025 The utzip authors.

package utzip

import (
	"testing"
	"time"
)

func TestMsDosTimeRoundTrip(t *testing.T) {
	want := time.Date(2024, time.March, 15, 13, 42, 30, 0, time.UTC)
	fDate, fTime := timeToMsDosTime(want)
	got := msDosTimeToTime(time.UTC, fDate, fTime)
	// MS-DOS time has 2-second resolution.
	if got.Sub(want).Abs() > 2*time.Second {
		t.Fatalf("round trip = %v, want ~%v", got, want)
	}
}

func TestMsDosTimeClampsBeforeEpoch(t *testing.T) {
	before := time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
	fDate, fTime := timeToMsDosTime(before)
	got := msDosTimeToTime(time.UTC, fDate, fTime)
	if got.Year() != 1980 {
		t.Fatalf("year = %d, want clamped to 1980", got.Year())
	}
}

func TestExtendedTimestampRoundTrip(t *testing.T) {
	want := time.Unix(1700000000, 0)
	extra := encodeExtendedTimestamp(want)
	got, ok := decodeExtendedTimestamp(extra[4:])
	if !ok {
		t.Fatal("decodeExtendedTimestamp reported absent mod-time flag")
	}
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDecodeExtendedTimestampRejectsMissingModTimeFlag(t *testing.T) {
	payload := []byte{0x00, 0, 0, 0, 0}
	if _, ok := decodeExtendedTimestamp(payload); ok {
		t.Fatal("expected false when mod-time flag bit is unset")
	}
}
