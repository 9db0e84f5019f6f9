// Package atomicwrite implements the per-document write procedure from
// §4.10: write to a sibling temp file, fsync it, rename over the target,
// fsync the containing directory. The teacher opened log/cache files
// directly for append (internal/tactile's AuditFileLogger); this package
// generalizes that to a full-content replace that is safe to interrupt at
// any point without corrupting the target.
package atomicwrite

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/scribehq/dle/internal/config"
	"github.com/scribehq/dle/internal/dlerrors"
)

// Result reports the before/after hashes of a completed write, per §4.4's
// {sha_before, sha_after} output contract.
type Result struct {
	ShaBefore string
	ShaAfter  string
}

// Write replaces the contents of path with content atomically. If path
// does not yet exist, ShaBefore is the empty string. cfg controls whether
// fsync is performed (disabling it is only ever appropriate for tests on
// filesystems where fsync is unavailable or prohibitively slow).
func Write(path string, content []byte, cfg config.WriterConfig) (Result, error) {
	before, err := hashFile(path)
	if err != nil {
		return Result{}, dlerrors.Wrap(dlerrors.IOTemporary, "read existing file for sha_before", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return Result{}, dlerrors.Wrap(dlerrors.IOTemporary, "create temp file", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return Result{}, dlerrors.Wrap(dlerrors.IOTemporary, "write temp file", err)
	}

	if cfg.Fsync {
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return Result{}, dlerrors.Wrap(dlerrors.IOTemporary, "fsync temp file", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return Result{}, dlerrors.Wrap(dlerrors.IOTemporary, "close temp file", err)
	}

	info, statErr := os.Stat(path)
	var mode os.FileMode = 0o644
	if statErr == nil {
		mode = info.Mode()
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return Result{}, dlerrors.Wrap(dlerrors.IOTemporary, "chmod temp file", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return Result{}, dlerrors.Wrap(dlerrors.IOTemporary, "rename temp file over target", err)
	}
	cleanup = false

	if cfg.Fsync {
		if err := fsyncDir(dir); err != nil {
			return Result{}, dlerrors.Wrap(dlerrors.IOTemporary, "fsync containing directory", err)
		}
	}

	after, err := hashFile(path)
	if err != nil {
		return Result{}, dlerrors.Wrap(dlerrors.IOTemporary, "read written file for sha_after", err)
	}

	return Result{ShaBefore: before, ShaAfter: after}, nil
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return ShaHex(data), nil
}

// ShaHex returns the lowercase hex SHA-256 digest of data, the canonical
// form used for sha_before/sha_after and rotation chain hashes throughout
// the engine.
func ShaHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyMatches is a post-write verification helper (§4.10's "recompute
// sha_after") — it recomputes the hash of the file on disk and compares it
// to expected, returning a HASH_MISMATCH error on divergence.
func VerifyMatches(path, expected string) error {
	got, err := hashFile(path)
	if err != nil {
		return dlerrors.Wrap(dlerrors.IOTemporary, "read file for post-write verification", err)
	}
	if got != expected {
		return dlerrors.Newf(dlerrors.HashMismatch, "post-write verification failed for %s", path).
			WithDiagnostics(map[string]any{"path": path, "expected": expected, "actual": got})
	}
	return nil
}
