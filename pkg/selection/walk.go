// Copyright 2025 The utzip authors.
//
// Filesystem recursion for the selection engine, per spec.md §4.6:
// "`recurse` walks filesystem directories depth-first, deterministic
// lexicographic order; `recurse-patterns` takes patterns interpreted
// against names found while walking the current directory. Symlinks
// are stored as links only when enabled; otherwise traversed as their
// targets."

package selection

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Candidate is one filesystem entry discovered by Walk, keyed by the
// archive-relative path it will occupy.
type Candidate struct {
	ArchivePath string
	FSPath      string
	ModTime     time.Time
	Size        int64
	IsDir       bool
	IsSymlink   bool
	LinkTarget  string // populated when IsSymlink
}

// WalkOptions configures one recursive walk.
type WalkOptions struct {
	// StoreSymlinks stores symlinks as links (LinkTarget populated,
	// not traversed); when false, symlinks are followed as their
	// targets.
	StoreSymlinks bool

	// RecursePatterns, when non-empty, keeps only names matching one
	// of these patterns as they are discovered (spec.md §4.6's
	// `recurse-patterns`).
	RecursePatterns []string
	NoWildcardsBoundary bool
}

// Walk recursively lists root (a filesystem path), producing
// candidates named relative to archiveBase, in deterministic
// lexicographic order within each directory (depth-first).
func Walk(root, archiveBase string, opts WalkOptions) ([]Candidate, error) {
	var out []Candidate
	err := walkDir(root, archiveBase, opts, &out)
	return out, err
}

func walkDir(dir, archivePrefix string, opts WalkOptions, out *[]Candidate) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("utzip/selection: reading %s: %w", dir, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)

	for _, name := range names {
		if len(opts.RecursePatterns) > 0 && !MatchAny(opts.RecursePatterns, name, opts.NoWildcardsBoundary) {
			continue
		}
		fsPath := filepath.Join(dir, name)
		archivePath := name
		if archivePrefix != "" {
			archivePath = archivePrefix + "/" + name
		}

		lst, err := os.Lstat(fsPath)
		if err != nil {
			return fmt.Errorf("utzip/selection: stat %s: %w", fsPath, err)
		}

		if lst.Mode()&os.ModeSymlink != 0 && opts.StoreSymlinks {
			target, err := os.Readlink(fsPath)
			if err != nil {
				return fmt.Errorf("utzip/selection: reading link %s: %w", fsPath, err)
			}
			*out = append(*out, Candidate{
				ArchivePath: archivePath,
				FSPath:      fsPath,
				ModTime:     lst.ModTime(),
				IsSymlink:   true,
				LinkTarget:  target,
			})
			continue
		}

		info, err := os.Stat(fsPath)
		if err != nil {
			return fmt.Errorf("utzip/selection: stat %s: %w", fsPath, err)
		}
		if info.IsDir() {
			*out = append(*out, Candidate{
				ArchivePath: archivePath + "/",
				FSPath:      fsPath,
				ModTime:     info.ModTime(),
				IsDir:       true,
			})
			if err := walkDir(fsPath, archivePath, opts, out); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, Candidate{
			ArchivePath: archivePath,
			FSPath:      fsPath,
			ModTime:     info.ModTime(),
			Size:        info.Size(),
		})
	}
	return nil
}
