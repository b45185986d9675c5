package pager

import "github.com/pkg/errors"

// I/O-level error taxonomy (spec.md §7). These are sentinels: callers
// compare with errors.Is even after a call site wraps one with
// errors.Wrap for added context.
var (
	ErrInvalidSize  = errors.New("pager: file size is not a positive multiple of the page size")
	ErrInvalidMagic = errors.New("pager: meta page magic does not match this file format")
)

// FatalError marks a condition the pager cannot recover from: the
// memory map has already fixed an address range, so a failed file
// extension mid-write leaves the database in an undefined state.
// Spec.md §4.1 calls this out explicitly as a deliberate non-error
// path — callers are expected to let the process die rather than
// attempt to continue.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return "pager: fatal: " + e.Op + ": " + e.Err.Error()
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatal(op string, err error) {
	panic(&FatalError{Op: op, Err: err})
}
