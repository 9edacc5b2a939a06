// Copyright 2025 The utzip authors.

package modes

import (
	"os"

	"github.com/nullvector/utzip"
	"github.com/nullvector/utzip/pkg/selection"
)

// DefaultResolver implements spec.md §4.2's level policy (explicit
// level if pinned, else size-adaptive) and gates encryption behind a
// non-empty password for the run, per SPEC_FULL.md's "one password per
// run" decision.
type DefaultResolver struct {
	Cfg           utzip.Config
	Method        uint16
	Level         int // used only when LevelExplicit is set; otherwise the size-adaptive default applies
	LevelExplicit bool
	Password      string
}

func (r DefaultResolver) Resolve(c *selection.Candidate) EntryOptions {
	method := r.Method
	if r.Cfg.ForcesStore(c.ArchivePath) {
		method = utzip.Store
	}

	level := r.Level
	explicit := r.LevelExplicit
	if !explicit {
		if info, err := os.Stat(c.FSPath); err == nil {
			level = utzip.SizeAdaptiveLevel(info.Size())
		} else {
			level = r.Cfg.DefaultLevel
		}
	}

	return EntryOptions{
		Method:        method,
		Level:         level,
		LevelExplicit: explicit,
		Encrypt:       r.Password != "",
	}
}
