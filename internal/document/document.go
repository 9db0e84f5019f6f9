// Package document implements the body-relative machinery shared by the
// mutation engine: the fence/heading/anchor line classifier (§4.3), header
// normalization (§4.5), TOC generation (§4.6), and crosslink validation
// (§4.7). All of it operates purely on a body string plus its line-index
// view; frontmatter never enters this package, matching §4's "all line
// numbers exposed by the engine are body-relative" invariant.
package document

import "strings"

// Lines is a 1-indexed view over a body's lines. Index 0 is unused so that
// callers can write Lines[1] for "body line 1" without an off-by-one tax.
type Lines struct {
	raw    []string // raw[0] unused, raw[1..n] are the body lines
	hasEOL bool     // whether the original body ended with a line terminator
}

// Split parses body into a 1-indexed Lines view. A trailing newline is
// tracked (not stored as an empty trailing element) so Join can reproduce
// it.
func Split(body string) *Lines {
	hasEOL := strings.HasSuffix(body, "\n")
	trimmed := body
	if hasEOL {
		trimmed = body[:len(body)-1]
	}
	var raw []string
	if trimmed == "" && !hasEOL {
		raw = []string{""}
	} else {
		raw = strings.Split(trimmed, "\n")
	}
	out := make([]string, len(raw)+1)
	copy(out[1:], raw)
	return &Lines{raw: out, hasEOL: hasEOL || body == ""}
}

// Count returns the number of body lines.
func (l *Lines) Count() int { return len(l.raw) - 1 }

// At returns body line n (1-based).
func (l *Lines) At(n int) string { return l.raw[n] }

// All returns a 1-indexed copy slice; index 0 is always "".
func (l *Lines) All() []string { return l.raw }

// Slice returns lines [start, end] inclusive, 1-based.
func (l *Lines) Slice(start, end int) []string {
	return l.raw[start : end+1]
}

// InBounds reports whether a 1-based line number is a valid existing body
// line.
func (l *Lines) InBounds(n int) bool { return n >= 1 && n <= l.Count() }

// Join reassembles the lines back into a body string, preserving the
// original trailing-newline convention.
func (l *Lines) Join() string {
	body := strings.Join(l.raw[1:], "\n")
	if l.hasEOL && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body
}

// ReplaceRange returns a new Lines with body lines [start, end] (inclusive,
// 1-based) replaced by the lines of replacement (split on "\n", no trailing
// empty element unless replacement ends with "\n").
func (l *Lines) ReplaceRange(start, end int, replacement string) *Lines {
	var repl []string
	if replacement == "" {
		repl = nil
	} else {
		repl = strings.Split(strings.TrimSuffix(replacement, "\n"), "\n")
	}

	out := make([]string, 0, l.Count()+len(repl))
	out = append(out, l.raw[1:start]...)
	out = append(out, repl...)
	out = append(out, l.raw[end+1:]...)

	newRaw := make([]string, len(out)+1)
	copy(newRaw[1:], out)
	return &Lines{raw: newRaw, hasEOL: l.hasEOL}
}

// InsertAfter returns a new Lines with the lines of content inserted
// immediately after body line n (n=0 inserts at the very start).
func (l *Lines) InsertAfter(n int, content string) *Lines {
	var ins []string
	if content != "" {
		ins = strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	}
	out := make([]string, 0, l.Count()+len(ins))
	out = append(out, l.raw[1:n+1]...)
	out = append(out, ins...)
	out = append(out, l.raw[n+1:]...)

	newRaw := make([]string, len(out)+1)
	copy(newRaw[1:], out)
	return &Lines{raw: newRaw, hasEOL: l.hasEOL}
}

// LastNonBlank returns the 1-based line number of the final non-whitespace
// body line, or 0 if the body is entirely blank.
func (l *Lines) LastNonBlank() int {
	for i := l.Count(); i >= 1; i-- {
		if strings.TrimSpace(l.raw[i]) != "" {
			return i
		}
	}
	return 0
}
