package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribehq/dle/internal/metrics"
	"github.com/scribehq/dle/internal/registry"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	store, err := registry.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return registry.New(store)
}

func TestRecordPersistsDocChange(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	m := New(reg, nil, nil)

	err := m.Record(ctx, registry.DocChange{
		Project: "demo", Doc: "architecture", Action: "replace_section",
		ShaBefore: "a", ShaAfter: "b",
	})
	require.NoError(t, err)

	n, err := m.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReconcileDrainsPendingRows(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t)
	mc := metrics.New()

	require.NoError(t, reg.MarkMirrorPending(ctx, registry.DocChange{
		Project: "demo", Doc: "architecture", Action: "append", ShaBefore: "a", ShaAfter: "b",
	}))
	require.NoError(t, reg.MarkMirrorPending(ctx, registry.DocChange{
		Project: "demo", Doc: "checklist", Action: "status_update", ShaBefore: "c", ShaAfter: "d",
	}))

	m := New(reg, nil, mc)
	n, err := m.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var progressed []int
	resolved, err := m.Reconcile(ctx, func(done, total int) { progressed = append(progressed, done) })
	require.NoError(t, err)
	assert.Equal(t, 2, resolved)
	assert.Equal(t, []int{1, 2}, progressed)

	n, err = m.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
