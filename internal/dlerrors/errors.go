// Package dlerrors defines the structured error taxonomy the document
// lifecycle engine returns across its public boundaries. Every failure the
// engine produces is a *Error carrying a stable Code plus enough Diagnostics
// for a caller to locate the problem without parsing a message string.
package dlerrors

import (
	"errors"
	"fmt"
)

// Code is one of the error kinds enumerated in the engine's failure policy.
type Code string

const (
	DocNotFound       Code = "DOC_NOT_FOUND"
	SectionNotFound   Code = "SECTION_NOT_FOUND"
	AnchorNotFound    Code = "ANCHOR_NOT_FOUND"
	AmbiguousAnchor   Code = "AMBIGUOUS_ANCHOR"
	TokenNotFound     Code = "TOKEN_NOT_FOUND"
	RangeOutOfBounds  Code = "RANGE_OUT_OF_BOUNDS"
	MissingMetadata   Code = "MISSING_METADATA"
	BadMetaValue      Code = "BAD_META_VALUE"
	DuplicateDoc      Code = "DUPLICATE_DOC"
	PathCollision     Code = "PATH_COLLISION"
	PathEscape        Code = "PATH_ESCAPE"
	StaleSource       Code = "STALE_SOURCE"
	LockTimeout       Code = "LOCK_TIMEOUT"
	HashMismatch      Code = "HASH_MISMATCH"
	RotationBroken    Code = "ROTATION_CHAIN_BROKEN"
	IOTemporary       Code = "IO_TEMPORARY"
)

// Error is the structured result every public engine call returns on
// failure. It never escapes as a panic and it is always safe to
// errors.As into.
type Error struct {
	Code        Code
	Message     string
	Diagnostics map[string]any
	Wrapped     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is allows errors.Is(err, dlerrors.DocNotFound) style checks against the
// Code by wrapping it in a sentinel comparison.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// New builds a bare structured error with no diagnostics.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a structured error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving it
// for errors.Unwrap/errors.Is chains.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Wrapped: err}
}

// WithDiagnostics returns a copy of e with the given diagnostics attached.
// Diagnostics are merged, with d taking precedence on key collision.
func (e *Error) WithDiagnostics(d map[string]any) *Error {
	merged := make(map[string]any, len(e.Diagnostics)+len(d))
	for k, v := range e.Diagnostics {
		merged[k] = v
	}
	for k, v := range d {
		merged[k] = v
	}
	cp := *e
	cp.Diagnostics = merged
	return &cp
}

// CodeOf extracts the Code from err, returning "" if err is not (or does
// not wrap) a *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
