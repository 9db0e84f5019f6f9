// Package sandbox resolves and verifies that every path the engine touches
// stays inside a project's canonical root. No read or write anywhere in the
// engine bypasses Resolve.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scribehq/dle/internal/dlerrors"
)

// Sandbox pins every resolved path to a canonical, symlink-free root.
type Sandbox struct {
	root string // canonical, absolute, symlink-resolved
}

// New canonicalizes root (resolving symlinks) and returns a Sandbox scoped
// to it. root must already exist.
func New(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, dlerrors.Wrap(dlerrors.PathEscape, "resolve project root", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, dlerrors.Wrap(dlerrors.PathEscape, "canonicalize project root", err)
	}
	return &Sandbox{root: real}, nil
}

// Root returns the sandbox's canonical root path.
func (s *Sandbox) Root() string { return s.root }

// Resolve joins rel onto the sandbox root and verifies the result is a
// descendant of the root after symlink resolution, rejecting traversal
// (`..`), device files, and symlinks that escape the root. The returned
// path is absolute and safe to open.
//
// If the target does not yet exist (e.g. a new document about to be
// created), only its parent directory needs to already exist and resolve
// inside the root; the leaf name itself is appended without requiring it
// to be on disk.
func (s *Sandbox) Resolve(rel string) (string, error) {
	if rel == "" {
		return "", dlerrors.New(dlerrors.PathEscape, "empty path")
	}

	joined := filepath.Join(s.root, rel)
	if !strings.HasPrefix(joined, s.root) {
		return "", dlerrors.Newf(dlerrors.PathEscape, "path %q escapes project root", rel)
	}

	real, err := s.resolveExistingOrParent(joined)
	if err != nil {
		return "", err
	}
	return real, nil
}

func (s *Sandbox) resolveExistingOrParent(joined string) (string, error) {
	_, err := os.Lstat(joined)
	switch {
	case err == nil:
		// Resolve the whole path, not only a symlinked leaf, so a
		// symlinked directory along the way cannot lead outside the root.
		target, err := filepath.EvalSymlinks(joined)
		if err != nil {
			return "", dlerrors.Wrap(dlerrors.PathEscape, "resolve symlink", err)
		}
		if !s.within(target) {
			return "", dlerrors.Newf(dlerrors.PathEscape, "symlink %q escapes project root", joined)
		}
		return target, s.rejectDevice(target)
	case os.IsNotExist(err):
		parent := filepath.Dir(joined)
		realParent, perr := filepath.EvalSymlinks(parent)
		if perr != nil {
			return "", dlerrors.Wrap(dlerrors.PathEscape, "resolve parent directory", perr)
		}
		if !s.within(realParent) {
			return "", dlerrors.Newf(dlerrors.PathEscape, "parent of %q escapes project root", joined)
		}
		return filepath.Join(realParent, filepath.Base(joined)), nil
	default:
		return "", dlerrors.Wrap(dlerrors.PathEscape, "stat path", err)
	}
}

func (s *Sandbox) within(p string) bool {
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && rel != "..")
}

func (s *Sandbox) rejectDevice(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		// Doesn't exist yet; nothing to reject.
		return nil
	}
	if info.Mode()&(os.ModeDevice|os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 {
		return dlerrors.Newf(dlerrors.PathEscape, "refusing to operate on special file %q", p)
	}
	return nil
}

// MustRel returns rel's path relative to the sandbox root, for diagnostics
// and logging. It never fails: on error it returns the absolute path.
func (s *Sandbox) MustRel(abs string) string {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return abs
	}
	return rel
}

// EnsureDescendantDir verifies dir (absolute, or relative to the root) is a
// descendant of the sandbox root and creates it (and parents) if missing.
func (s *Sandbox) EnsureDescendantDir(dir string) error {
	resolved := dir
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(s.root, resolved)
	}
	resolved = filepath.Clean(resolved)
	existing := resolved
	for {
		if _, err := os.Lstat(existing); err == nil || existing == filepath.Dir(existing) {
			break
		}
		existing = filepath.Dir(existing)
	}
	real, err := filepath.EvalSymlinks(existing)
	if err != nil || !s.within(resolved) || !s.within(real) {
		return dlerrors.Newf(dlerrors.PathEscape, "directory %q escapes project root", dir)
	}
	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", resolved, err)
	}
	return nil
}
