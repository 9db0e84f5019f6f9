package applog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribehq/dle/internal/config"
	"github.com/scribehq/dle/internal/dlerrors"
	"github.com/scribehq/dle/internal/lockmgr"
)

func newTestEngine() *Engine {
	return New(lockmgr.New(5*time.Second), "scribe", config.WriterConfig{Fsync: false})
}

func TestAppendMissingMetadata(t *testing.T) {
	en := newTestEngine()
	dir := t.TempDir()
	path := filepath.Join(dir, "doc_updates.md")
	def := config.LogDefinition{Key: "doc_updates", RequiredMeta: []string{"doc", "section", "action"}}

	_, err := en.Append(context.Background(), path, def, Entry{
		Agent: "claude", Project: "demo", Message: "did a thing",
		Metadata: map[string]string{"doc": "architecture", "action": "append"},
	}, time.Now())

	require.Error(t, err)
	assert.Equal(t, dlerrors.MissingMetadata, dlerrors.CodeOf(err))
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAppendWritesLine(t *testing.T) {
	en := newTestEngine()
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.md")
	def := config.LogDefinition{Key: "progress", EmojiDefault: "📝"}

	res, err := en.Append(context.Background(), path, def, Entry{
		Agent: "claude", Project: "demo", Message: "started work",
	}, time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotEmpty(t, res.EntryID)
	assert.Len(t, res.EntryID, 32)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[📝] [2026-07-29 12:00:00 UTC]")
	assert.Contains(t, string(data), "[Agent: claude] [Project: demo]")
}

func TestBulkAppendStaggersTimestamps(t *testing.T) {
	en := newTestEngine()
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.md")
	def := config.LogDefinition{Key: "progress", EmojiDefault: "📝"}

	entries := []Entry{
		{Agent: "claude", Project: "demo", Message: "one"},
		{Agent: "claude", Project: "demo", Message: "two"},
		{Agent: "claude", Project: "demo", Message: "three"},
	}

	start := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	results, err := en.BulkAppend(context.Background(), path, def, entries, start, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, results, 3)

	ids := map[string]bool{}
	for _, r := range results {
		ids[r.EntryID] = true
	}
	assert.Len(t, ids, 3, "every bulk entry gets a distinct entry_id")

	for i, r := range results {
		want, err := EntryID(Entry{
			Agent: "claude", Project: "demo", Message: entries[i].Message,
			Emoji: "📝", RepoSlug: "scribe",
			Timestamp: start.Add(time.Duration(i) * time.Millisecond),
		})
		require.NoError(t, err)
		assert.Equal(t, want, r.EntryID, "entry %d is stamped start + %d*stagger", i, i)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3)
}

func TestResolvePath(t *testing.T) {
	def := config.LogDefinition{PathTemplate: "{docs_dir}/progress.md"}
	assert.Equal(t, "/proj/docs/progress.md", ResolvePath(def, "/proj/docs"))
}
