// Copyright 2025 The utzip authors.
//
// SelectionPlan construction: joining filesystem candidates with
// old-archive entries per the mode decision table in spec.md §4.6.

package selection

import (
	"fmt"
	"time"

	"github.com/nullvector/utzip"
)

// DateBound is an optional date-filter boundary (spec.md §4.6's
// after_date/before_date); a zero-value DateBound is unset.
type DateBound struct {
	Time  time.Time
	Valid bool
}

// Action is what the mode engine should do with one archive-path.
type Action int

const (
	Skip Action = iota
	Add
	ReCompress
	CopyRaw
	Delete
)

func (a Action) String() string {
	switch a {
	case Add:
		return "add"
	case ReCompress:
		return "recompress"
	case CopyRaw:
		return "copyraw"
	case Delete:
		return "delete"
	default:
		return "skip"
	}
}

// Mode is one of spec.md §4.6's mode-engine modes.
type Mode int

const (
	ModeAdd Mode = iota
	ModeUpdate
	ModeFreshen
	ModeFileSync
	ModeDelete
	ModeCopy
	ModeDif
)

// Entry is one row of a SelectionPlan: the archive-path it's keyed by,
// the Action to take, and whichever of FS/Old supplies the data.
type Entry struct {
	ArchivePath string
	Action      Action
	FS          *Candidate
	Old         *utzip.FileHeader
}

// Filter carries the user-facing selection options from spec.md §4.6
// (pattern include/exclude, date range) plus the mode-specific user
// pattern used by delete (-d) and copy (-U).
type Filter struct {
	Include             []string
	Exclude             []string
	UserPatterns        []string // the -d / -U pattern arguments
	NoWildcardsBoundary bool
	AfterDate           DateBound
	BeforeDate          DateBound
}

func (f Filter) passesNameFilter(name string) bool {
	return Included(f.Include, f.Exclude, name, f.NoWildcardsBoundary)
}

func (f Filter) passesDateFilter(t DateBound) bool {
	if f.AfterDate.Valid && t.Valid && t.Time.Before(f.AfterDate.Time) {
		return false
	}
	if f.BeforeDate.Valid && t.Valid && !t.Time.Before(f.BeforeDate.Time) {
		return false
	}
	return true
}

// changed reports whether fs looks newer/different than old, per the
// comparison each mode's decision-table column actually uses: "newer"
// (mtime only, for update/freshen) or "differs" (size or mtime, for
// filesync/dif).
func changed(fs *Candidate, old *utzip.FileHeader, byMTimeOnly bool) bool {
	if byMTimeOnly {
		return fs.ModTime.After(old.Modified)
	}
	return !fs.ModTime.Equal(old.Modified) || uint64(fs.Size) != old.UncompressedSize64
}

// BuildPlan joins fsCandidates (keyed by archive-path) with oldEntries
// per mode's column of spec.md §4.6's decision table, and applies
// name/date filters to filesystem-originated rows.
//
// BuildPlan does not itself reject duplicate archive-paths among
// fsCandidates; the caller (Walk plus any explicit file arguments)
// is expected to have already deduplicated, per spec.md §4.6:
// "Duplicate archive-paths are rejected (fatal)."
func BuildPlan(mode Mode, fsCandidates map[string]*Candidate, oldEntries []*utzip.FileHeader, filter Filter) ([]Entry, error) {
	oldByName := make(map[string]*utzip.FileHeader, len(oldEntries))
	for _, e := range oldEntries {
		oldByName[e.Name] = e
	}

	seen := make(map[string]bool, len(fsCandidates)+len(oldEntries))
	var plan []Entry

	for name, fs := range fsCandidates {
		if seen[name] {
			return nil, fmt.Errorf("utzip/selection: duplicate archive path %q", name)
		}
		seen[name] = true

		if old, ok := oldByName[name]; ok {
			plan = append(plan, bothPresentEntry(mode, name, fs, old, filter))
			continue
		}

		entry := Entry{ArchivePath: name, FS: fs}
		switch mode {
		case ModeFreshen:
			entry.Action = Skip
		case ModeDelete, ModeCopy:
			entry.Action = Skip
		default:
			if filter.passesNameFilter(name) && filter.passesDateFilter(fsModTime(fs)) {
				entry.Action = Add
			} else {
				entry.Action = Skip
			}
		}
		plan = append(plan, entry)
	}

	for _, old := range oldEntries {
		if seen[old.Name] {
			continue
		}
		plan = append(plan, archiveOnlyEntry(mode, old, filter))
	}

	return plan, nil
}

func fsModTime(fs *Candidate) DateBound {
	return DateBound{Time: fs.ModTime, Valid: true}
}

func bothPresentEntry(mode Mode, name string, fs *Candidate, old *utzip.FileHeader, filter Filter) Entry {
	e := Entry{ArchivePath: name, FS: fs, Old: old}
	switch mode {
	case ModeAdd, ModeUpdate, ModeFreshen:
		if changed(fs, old, true) {
			e.Action = ReCompress
		} else {
			e.Action = CopyRaw
		}
	case ModeFileSync:
		if changed(fs, old, false) {
			e.Action = ReCompress
		} else {
			e.Action = CopyRaw
		}
	case ModeDif:
		if changed(fs, old, false) {
			e.Action = ReCompress
		} else {
			e.Action = Skip
		}
	case ModeDelete:
		// Delete mode ignores the filesystem side entirely (spec.md
		// §4.6's table marks both FS-only and FS-and-archive columns
		// "--" for -d); fall back to the archive-only rule.
		return archiveOnlyEntry(mode, old, filter)
	case ModeCopy:
		// "CopyRaw iff matches" when the FS side looks newer/different,
		// unconditional CopyRaw when it does not (spec.md §4.6's -U
		// row: "CopyRaw iff matches | CopyRaw").
		if changed(fs, old, false) {
			if MatchAny(filter.UserPatterns, name, filter.NoWildcardsBoundary) {
				e.Action = CopyRaw
			} else {
				e.Action = Skip
			}
		} else {
			e.Action = CopyRaw
		}
	default:
		e.Action = CopyRaw
	}
	return e
}

func archiveOnlyEntry(mode Mode, old *utzip.FileHeader, filter Filter) Entry {
	e := Entry{ArchivePath: old.Name, Old: old}
	switch mode {
	case ModeFileSync:
		e.Action = Delete
	case ModeDelete:
		if MatchAny(filter.UserPatterns, old.Name, filter.NoWildcardsBoundary) {
			e.Action = Delete
		} else {
			e.Action = CopyRaw
		}
	case ModeCopy:
		if MatchAny(filter.UserPatterns, old.Name, filter.NoWildcardsBoundary) {
			e.Action = CopyRaw
		} else {
			e.Action = Skip
		}
	case ModeDif:
		e.Action = Skip
	default: // Add, Update, Freshen
		e.Action = CopyRaw
	}
	return e
}
