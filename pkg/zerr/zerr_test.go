// Copyright 2025 The utzip authors.

package zerr

import (
	"errors"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	err := New(InvalidArchive, "central directory signature not found")
	want := "utzip error: invalid-archive (central directory signature not found)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(IoFailure, cause)
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
}

func TestIsMatchesByKind(t *testing.T) {
	a := New(NothingToDo, "no files matched")
	b := Wrap(NothingToDo, errors.New("different detail entirely"))
	if !errors.Is(a, b) {
		t.Errorf("errors.Is(a, b) = false, want true (same Kind)")
	}
	c := New(PatternError, "bad glob")
	if errors.Is(a, c) {
		t.Errorf("errors.Is(a, c) = true, want false (different Kind)")
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{NothingToDo, 12},
		{Interrupted, 9},
		{InvalidArchive, 3},
		{ArchiveNotFound, 18},
	}
	for _, tc := range tests {
		if got := tc.kind.ExitCode(); got != tc.want {
			t.Errorf("%s.ExitCode() = %d, want %d", tc.kind, got, tc.want)
		}
	}
}
