// Copyright 2025 The utzip authors.
//
// Error taxonomy and exit-code mapping, per spec.md §7 ("Error Handling
// Design") and §6's Info-ZIP-derived exit codes. Every fatal error that
// crosses out of the core packages should be (or wrap) a *zerr.Error so
// a CLI front-end can print "utzip error: <kind> (<detail>)" and map it
// to a process exit code without re-deriving the taxonomy itself.

package zerr

import "fmt"

// Kind identifies one of spec.md §7's error categories.
type Kind int

const (
	IoFailure Kind = iota
	ArchiveNotFound
	EntryNotFound
	PasswordRequired
	InvalidPassword
	InvalidArguments
	NothingToDo
	PatternError
	UnsupportedFeature
	InvalidDateTime
	DuplicateFileName
	Interrupted
	InvalidArchive
)

var kindNames = map[Kind]string{
	IoFailure:          "io-failure",
	ArchiveNotFound:    "archive-not-found",
	EntryNotFound:      "entry-not-found",
	PasswordRequired:   "password-required",
	InvalidPassword:    "invalid-password",
	InvalidArguments:   "invalid-arguments",
	NothingToDo:        "nothing-to-do",
	PatternError:       "pattern-error",
	UnsupportedFeature: "unsupported-feature",
	InvalidDateTime:    "invalid-datetime",
	DuplicateFileName:  "duplicate-filename",
	Interrupted:        "interrupted",
	InvalidArchive:     "invalid-archive",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// exitCodes follows spec.md §6's Info-ZIP exit-code conventions: "0
// success, 2 unexpected end, 3 invalid archive, 4 cannot allocate
// output, 6 entry too large, 9 interrupted, 12 nothing to do, 14 cannot
// write, 18 cannot open file, others reserved." Kinds with no direct
// counterpart in that list map to the nearest Info-ZIP code used for
// the same class of failure.
var exitCodes = map[Kind]int{
	IoFailure:          14, // cannot write
	ArchiveNotFound:    18, // cannot open file
	EntryNotFound:      11, // no matching entries, reserved by Info-ZIP for this case
	PasswordRequired:   5,  // zip exit code for password handling failures
	InvalidPassword:    5,
	InvalidArguments:   2, // generic error / bad usage
	NothingToDo:        12,
	PatternError:       2,
	UnsupportedFeature: 4,
	InvalidDateTime:    2,
	DuplicateFileName:  2,
	Interrupted:        9,
	InvalidArchive:     3,
}

// ExitCode returns the process exit code spec.md §6 maps kind to.
func (k Kind) ExitCode() int {
	if c, ok := exitCodes[k]; ok {
		return c
	}
	return 2
}

// Error is a fatal, kind-tagged error. Its Detail is the user-facing
// diagnostic formatted by Error(); Err, when non-nil, is the underlying
// cause and participates in errors.Is/As via Unwrap.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap builds an *Error around an existing error, per spec.md §7's
// propagation policy (I/O failures during staging writes are fatal and
// should surface as a IoFailure-kind *Error, for instance).
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Detail: err.Error(), Err: err}
}

// Error implements error with the wire format spec.md §7 specifies for
// user-visible fatal errors: "utzip error: <kind> (<detail>)".
func (e *Error) Error() string {
	return fmt.Sprintf("utzip error: %s (%s)", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so callers
// can write errors.Is(err, zerr.New(zerr.NothingToDo, "")) without
// caring about Detail.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Kind == e.Kind
}
