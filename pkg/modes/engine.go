// Copyright 2025 The utzip authors.
//
// Mode engine: drives a Writer from a selection.Entry plan, turning
// each Action into the corresponding Writer call, per spec.md §4.5's
// "Data flow: ... the mode engine executes the plan by driving the
// writer, which either invokes the compression pipeline on a
// filesystem source or raw-copies bytes from the reader."

package modes

import (
	"os"

	"github.com/nullvector/utzip"
	"github.com/nullvector/utzip/pkg/selection"
	"github.com/nullvector/utzip/pkg/zerr"
)

// EntryOptions resolves the per-entry compression/encryption choices a
// plan entry doesn't carry itself -- spec.md §4.2's level policy and
// §4.3's password gate are run-wide settings, not per-file one.
type EntryOptions struct {
	Method        uint16
	Level         int
	LevelExplicit bool
	Encrypt       bool
}

// Resolver supplies EntryOptions for one filesystem candidate,
// implementing spec.md §4.2's size-adaptive default level policy and
// the suffix-exclusion/encryption gates above the pipeline.
type Resolver interface {
	Resolve(c *selection.Candidate) EntryOptions
}

// RunPlan drives w and r according to plan, in plan order (spec.md §5:
// "entries are emitted in the plan's iteration order"). r may be nil
// when the plan contains no CopyRaw action sourced from an old archive
// (a fresh Add-only run).
//
// Errors opening or stating a filesystem source are recoverable: the
// entry is skipped and its archive-path recorded in skipped, while the
// run continues. Once an entry's local header has been written, any
// error from AddEntry, including a read error from the source file, is
// returned immediately as fatal, as are errors writing to the staging
// archive.
func RunPlan(w *utzip.Writer, r *utzip.Reader, plan []selection.Entry, resolver Resolver) (skipped []string, err error) {
	for _, e := range plan {
		switch e.Action {
		case selection.Skip, selection.Delete:
			continue

		case selection.Add, selection.ReCompress:
			if ferr := addOrRecompress(w, e, resolver); ferr != nil {
				if isSourceReadError(ferr) {
					skipped = append(skipped, e.ArchivePath)
					continue
				}
				return skipped, ferr
			}

		case selection.CopyRaw:
			if r == nil || e.Old == nil {
				return skipped, zerr.New(zerr.InvalidArchive, "CopyRaw action with no source reader/entry")
			}
			raw, rawLen, rerr := r.RawCopy(e.Old)
			if rerr != nil {
				return skipped, zerr.Wrap(zerr.InvalidArchive, rerr)
			}
			if werr := w.CopyRawEntry(e.Old, raw, rawLen); werr != nil {
				return skipped, zerr.Wrap(zerr.IoFailure, werr)
			}
		}
	}
	return skipped, nil
}

// sourceReadError tags a failure that happened opening/stating the
// filesystem source, which spec.md §7 treats as recoverable -- as
// opposed to a failure writing into the staging archive, which is
// fatal.
type sourceReadError struct{ err error }

func (e sourceReadError) Error() string { return e.err.Error() }
func (e sourceReadError) Unwrap() error { return e.err }

func isSourceReadError(err error) bool {
	_, ok := err.(sourceReadError)
	return ok
}

func addOrRecompress(w *utzip.Writer, e selection.Entry, resolver Resolver) error {
	f, err := os.Open(e.FS.FSPath)
	if err != nil {
		return sourceReadError{err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return sourceReadError{err}
	}

	fh, err := utzip.FileInfoHeader(info)
	if err != nil {
		return sourceReadError{err}
	}
	fh.Name = e.ArchivePath

	opts := resolver.Resolve(e.FS)
	fh.Encrypted = opts.Encrypt
	if !fh.IsDir() {
		fh.SetStreaming(true)
	}

	pipelineOpts := utzip.PipelineOptions{
		Method:           opts.Method,
		Level:            opts.Level,
		LevelWasExplicit: opts.LevelExplicit,
	}
	if err := w.AddEntry(fh, f, pipelineOpts); err != nil {
		return zerr.Wrap(zerr.IoFailure, err)
	}
	return nil
}
