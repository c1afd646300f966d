package facts

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable = errors.New("fact unavailable")
	ErrTimeout     = errors.New("fact collection timed out")
)

// SourceKind tells which collector capability produced a failure.
type SourceKind string

const (
	KindCommand    SourceKind = "command"
	KindFile       SourceKind = "file"
	KindBuiltin    SourceKind = "builtin"
	KindInterfaces SourceKind = "interfaces"
)

// CollectionFailure is returned when a command, file or other fact source could
// not be read. It is never fatal: checks log it and fall back to a default.
type CollectionFailure struct {
	Kind   SourceKind
	Source string // command line, file path or builtin name
	Err    error
}

func (e *CollectionFailure) Error() string {
	return fmt.Sprintf("collect %s %q: %v", e.Kind, e.Source, e.Err)
}

func (e *CollectionFailure) Unwrap() error {
	return e.Err
}

// Is lets callers match any failure against ErrUnavailable regardless of the cause.
func (e *CollectionFailure) Is(target error) bool {
	return target == ErrUnavailable
}

func failure(kind SourceKind, source string, err error) error {
	return &CollectionFailure{Kind: kind, Source: source, Err: err}
}

// SourceOf extracts the failing source from err, or "" when err is not a CollectionFailure.
func SourceOf(err error) string {
	var cf *CollectionFailure
	if errors.As(err, &cf) {
		return cf.Source
	}
	return ""
}
