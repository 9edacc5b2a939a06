// Copyright 2025 The utzip authors.

package utzip

import (
	"strings"
	"time"
)

// Config carries the process-wide defaults spec.md's Design Notes call
// for threading explicitly through components rather than storing in
// singletons: "Global defaults (suffix list, default level) belong in a
// configuration value threaded through the components."
type Config struct {
	// DefaultLevel is used when a plan action does not pin an explicit
	// compression level and the size-adaptive policy (SizeAdaptiveLevel)
	// does not apply.
	DefaultLevel int

	// NoCompressSuffixes forces Method=Store regardless of the
	// requested method for any name ending in one of these suffixes
	// (spec.md §4.2 "Suffix exclusion"; the set is mutable per
	// SPEC_FULL.md's Supplemented feature #2, not a hardcoded list).
	NoCompressSuffixes map[string]struct{}

	// TempDir is where staging files are created (spec.md §4.8);
	// empty means "the output archive's own directory".
	TempDir string

	// SplitSize is the per-volume byte budget (spec.md §4.5); zero
	// disables splitting. Minimum 64KiB per spec.md §6.
	SplitSize int64

	// Location converts MS-DOS timestamps to/from time.Time,
	// respecting TZ per spec.md §6. Defaults to time.Local.
	Location *time.Location
}

// DefaultNoCompressSuffixes mirrors spec.md §4.2's default suffix set.
func DefaultNoCompressSuffixes() map[string]struct{} {
	return map[string]struct{}{
		".zip": {}, ".Z": {}, ".zoo": {}, ".arc": {}, ".arj": {},
	}
}

// DefaultConfig returns a Config with spec.md's defaults: level 6,
// the default no-compress suffix set, no split, local time zone.
func DefaultConfig() Config {
	return Config{
		DefaultLevel:       DefaultLevel,
		NoCompressSuffixes: DefaultNoCompressSuffixes(),
		Location:           time.Local,
	}
}

// ForcesStore reports whether name's suffix is in the no-compress set.
func (c Config) ForcesStore(name string) bool {
	for suffix := range c.NoCompressSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// MinSplitSize is the minimum split-volume size per spec.md §6 (-s SIZE,
// minimum 64 KiB).
const MinSplitSize = 64 * 1024

func (c Config) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.Local
}
