package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/scribehq/dle/internal/dlerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	reg := New(store)
	t.Cleanup(reg.Close)
	return reg
}

func TestRegisterAndGetProject(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	err := r.RegisterProject(ctx, Project{
		Name: "scribe", Root: "/repo", DocsDir: "/repo/docs", ProgressLogPath: "/repo/docs/progress.md",
		Defaults: map[string]string{"agent": "scribe-bot"},
	})
	require.NoError(t, err)

	p, err := r.GetProject(ctx, "scribe")
	require.NoError(t, err)
	assert.Equal(t, "/repo", p.Root)
	assert.Equal(t, "scribe-bot", p.Defaults["agent"])
}

func TestGetProjectNotFound(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.GetProject(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, dlerrors.DocNotFound, dlerrors.CodeOf(err))
}

func TestRegisterDocAndLookup(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterProject(ctx, Project{Name: "p", Root: "/r", DocsDir: "/r/docs", ProgressLogPath: "/r/docs/progress.md"}))

	require.NoError(t, r.Register(ctx, "p", "architecture", "/r/docs/architecture.md", "architecture"))

	doc, err := r.Lookup(ctx, "p", "architecture")
	require.NoError(t, err)
	assert.Equal(t, "/r/docs/architecture.md", doc.Path)
}

func TestLookupDocNotFound(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Lookup(context.Background(), "p", "missing")
	require.Error(t, err)
	assert.Equal(t, dlerrors.DocNotFound, dlerrors.CodeOf(err))
}

func TestRegisterDuplicateKeyFails(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterProject(ctx, Project{Name: "p", Root: "/r", DocsDir: "/r/docs", ProgressLogPath: "/r/docs/progress.md"}))
	require.NoError(t, r.Register(ctx, "p", "arch", "/r/docs/a.md", ""))

	err := r.Register(ctx, "p", "arch", "/r/docs/b.md", "")
	require.Error(t, err)
	assert.Equal(t, dlerrors.DuplicateDoc, dlerrors.CodeOf(err))
}

func TestRegisterPathCollisionFails(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterProject(ctx, Project{Name: "p", Root: "/r", DocsDir: "/r/docs", ProgressLogPath: "/r/docs/progress.md"}))
	require.NoError(t, r.Register(ctx, "p", "arch", "/r/docs/a.md", ""))

	err := r.Register(ctx, "p", "other_key", "/r/docs/a.md", "")
	require.Error(t, err)
	assert.Equal(t, dlerrors.PathCollision, dlerrors.CodeOf(err))
}

func TestRecordHashSetsBaselineOnFirstWrite(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterProject(ctx, Project{Name: "p", Root: "/r", DocsDir: "/r/docs", ProgressLogPath: "/r/docs/progress.md"}))
	require.NoError(t, r.Register(ctx, "p", "arch", "/r/docs/a.md", ""))

	require.NoError(t, r.RecordHash(ctx, "p", "arch", "hash1"))

	doc, err := r.Lookup(ctx, "p", "arch")
	require.NoError(t, err)
	assert.Equal(t, "hash1", doc.BaselineHash)
	assert.Equal(t, "hash1", doc.CurrentHash)
	assert.NotContains(t, doc.Flags, "baseline_differs")
}

func TestRecordHashFlagsBaselineDiffers(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterProject(ctx, Project{Name: "p", Root: "/r", DocsDir: "/r/docs", ProgressLogPath: "/r/docs/progress.md"}))
	require.NoError(t, r.Register(ctx, "p", "arch", "/r/docs/a.md", ""))
	require.NoError(t, r.RecordHash(ctx, "p", "arch", "hash1"))

	require.NoError(t, r.RecordHash(ctx, "p", "arch", "hash2"))

	doc, err := r.Lookup(ctx, "p", "arch")
	require.NoError(t, err)
	assert.Contains(t, doc.Flags, "baseline_differs")
}

func TestTouchAccessUpdatesTimestamp(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterProject(ctx, Project{Name: "p", Root: "/r", DocsDir: "/r/docs", ProgressLogPath: "/r/docs/progress.md"}))
	require.NoError(t, r.Register(ctx, "p", "arch", "/r/docs/a.md", ""))

	doc, err := r.Lookup(ctx, "p", "arch")
	require.NoError(t, err)
	assert.Nil(t, doc.LastAccessAt)

	require.NoError(t, r.TouchAccess(ctx, "p", "arch"))

	doc, err = r.Lookup(ctx, "p", "arch")
	require.NoError(t, err)
	assert.NotNil(t, doc.LastAccessAt)
}

func TestRecordChangeAndPendingMirrors(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	id, err := r.RecordChange(ctx, DocChange{
		Project: "p", Doc: "arch", Action: "replace_section",
		ShaBefore: "a", ShaAfter: "b", Metadata: map[string]string{"k": "v"},
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	pending, err := r.PendingMirrors(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "RecordChange is the success path and must not be pending")

	require.NoError(t, r.MarkMirrorPending(ctx, DocChange{Project: "p", Doc: "arch", Action: "append", ShaBefore: "c", ShaAfter: "d"}))

	pending, err = r.PendingMirrors(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, r.ResolveMirrorPending(ctx, pending[0].ID))

	pending, err = r.PendingMirrors(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMirrorAndQueryLogEntries(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	require.NoError(t, r.MirrorLogEntry(ctx, LogEntryMirror{Project: "p", LogKey: "bugs", EntryID: "e1", Message: "first"}))
	require.NoError(t, r.MirrorLogEntry(ctx, LogEntryMirror{Project: "p", LogKey: "bugs", EntryID: "e2", Message: "second"}))
	require.NoError(t, r.MirrorLogEntry(ctx, LogEntryMirror{Project: "other", LogKey: "bugs", EntryID: "e3", Message: "other project"}))

	entries, err := r.QueryLogEntries(ctx, LogQueryFilters{Project: "p", LogKey: "bugs"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e2", entries[0].EntryID, "most recent first")

	limited, err := r.QueryLogEntries(ctx, LogQueryFilters{Project: "p", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestListProjects(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterProject(ctx, Project{Name: "b", Root: "/b", DocsDir: "/b/docs", ProgressLogPath: "/b/docs/progress.md"}))
	require.NoError(t, r.RegisterProject(ctx, Project{Name: "a", Root: "/a", DocsDir: "/a/docs", ProgressLogPath: "/a/docs/progress.md"}))

	projects, err := r.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "a", projects[0].Name)
	assert.Equal(t, "b", projects[1].Name)
}
