package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/scribehq/dle/internal/dlerrors"
	"github.com/stretchr/testify/require"
)

func TestResolveWithinRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "a.md"), []byte("hi"), 0o644))

	sb, err := New(root)
	require.NoError(t, err)

	resolved, err := sb.Resolve("docs/a.md")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(sb.Root(), "docs", "a.md"), resolved)
}

func TestResolveRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	sb, err := New(root)
	require.NoError(t, err)

	_, err = sb.Resolve("../../etc/passwd")
	require.Error(t, err)
	require.Equal(t, dlerrors.PathEscape, dlerrors.CodeOf(err))
}

func TestResolveRejectsEscapingSymlink(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.md"), []byte("shh"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.md"), filepath.Join(root, "link.md")))

	sb, err := New(root)
	require.NoError(t, err)

	_, err = sb.Resolve("link.md")
	require.Error(t, err)
	require.Equal(t, dlerrors.PathEscape, dlerrors.CodeOf(err))
}

func TestResolveAllowsNewFileUnderExistingDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))

	sb, err := New(root)
	require.NoError(t, err)

	resolved, err := sb.Resolve("docs/new.md")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(sb.Root(), "docs", "new.md"), resolved)
}

func TestEnsureDescendantDir(t *testing.T) {
	root := t.TempDir()
	sb, err := New(root)
	require.NoError(t, err)

	require.NoError(t, sb.EnsureDescendantDir("docs/nested"))
	info, err := os.Stat(filepath.Join(sb.Root(), "docs", "nested"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
