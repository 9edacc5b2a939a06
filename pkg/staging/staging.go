// Copyright 2025 The utzip authors.
//
// Staging and commit: write through a temporary file, then atomically
// rename it over the destination, per spec.md §4.8. "If rename fails
// with a cross-device error, fall back to copy-then-remove with
// rollback on copy failure. If any error before commit: delete the
// staging file; leave the original archive untouched."

package staging

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/nullvector/utzip/pkg/zerr"
)

// Session owns one staging file for the lifetime of a single archive
// production pass (spec.md §5: "the output handle is exclusively owned
// by the writer for the duration of one archive production").
type Session struct {
	dir      string
	destPath string
	path     string
	file     *os.File
	done     bool
}

// New creates a staging file named <tempdir>/zi<6 hex> (spec.md §6).
// tempDir empty means "the same directory as destPath" (spec.md §4.8's
// default). Name collisions are detected and retried, never
// overwritten, per spec.md §5.
func New(destPath, tempDir string) (*Session, error) {
	dir := tempDir
	if dir == "" {
		dir = filepath.Dir(destPath)
	}
	const maxAttempts = 64
	for attempt := 0; attempt < maxAttempts; attempt++ {
		suffix, err := randomHex(6)
		if err != nil {
			return nil, zerr.Wrap(zerr.IoFailure, err)
		}
		path := filepath.Join(dir, "zi"+suffix)
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, zerr.Wrap(zerr.IoFailure, err)
		}
		return &Session{dir: dir, destPath: destPath, path: path, file: f}, nil
	}
	return nil, zerr.New(zerr.IoFailure, "could not allocate a unique staging file name")
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b)[:n], nil
}

// File returns the staging file's handle for the writer to use as its
// output sink.
func (s *Session) File() *os.File { return s.file }

// Path returns the staging file's path, e.g. for SplitNamer to use as
// the "final volume" of a split archive under construction.
func (s *Session) Path() string { return s.path }

// Commit flushes and closes the staging file, then atomically renames
// it over destPath, falling back to copy-then-remove when rename fails
// across a device boundary.
func (s *Session) Commit() error {
	if s.done {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		s.Abort()
		return zerr.Wrap(zerr.IoFailure, err)
	}
	if err := s.file.Close(); err != nil {
		s.Abort()
		return zerr.Wrap(zerr.IoFailure, err)
	}
	s.done = true

	if err := os.Rename(s.path, s.destPath); err != nil {
		if !isCrossDevice(err) {
			os.Remove(s.path)
			return zerr.Wrap(zerr.IoFailure, err)
		}
		if err := copyThenRemove(s.path, s.destPath); err != nil {
			return zerr.Wrap(zerr.IoFailure, err)
		}
	}
	return nil
}

// Abort deletes the staging file, leaving the original archive (if
// any) untouched, per spec.md §4.8's error path.
func (s *Session) Abort() {
	if s.done {
		return
	}
	s.done = true
	s.file.Close()
	os.Remove(s.path)
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// copyThenRemove is the cross-device fallback: copy src to dst, then
// remove src, rolling back (removing the partial dst) if the copy
// fails.
func copyThenRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("utzip/staging: cross-device copy: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
