// Package fault classifies the errors returned by the launcher's stores and
// process layer so the presentation layer can decide how to surface them.
package fault

import (
	"errors"
	"fmt"
)

// Kind represents a category of failure.
type Kind int

const (
	KindUnknown Kind = iota
	// NotFound marks a document that does not exist. Callers decide whether
	// that is an error or a signal to fall back to a default.
	NotFound
	IO
	Decode
	Encode
	Spawn
	HomeUnresolved
)

// String returns a human-readable representation of the kind
func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case IO:
		return "io_error"
	case Decode:
		return "decode_error"
	case Encode:
		return "encode_error"
	case Spawn:
		return "spawn_error"
	case HomeUnresolved:
		return "home_directory_unresolved"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Op names the operation ("read", "write",
// "launch"), Path the document or binary involved.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// New creates a classified error.
func New(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s %s [%s]: %v", e.Op, e.Path, e.Kind, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s %s [%s]", e.Op, e.Path, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s [%s]", e.Op, e.Kind)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnknown when there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
