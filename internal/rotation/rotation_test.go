package rotation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribehq/dle/internal/atomicwrite"
	"github.com/scribehq/dle/internal/config"
)

const sampleLine = "[📝] [2026-07-29 10:00:00 UTC] [Agent: claude] [Project: demo] [ID: abc] hello\n"

func writeLog(t *testing.T, dir string, lines int) string {
	t.Helper()
	path := filepath.Join(dir, "progress.md")
	content := ""
	for i := 0; i < lines; i++ {
		content += sampleLine
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCountEntries(t *testing.T) {
	data := []byte(sampleLine + sampleLine + "not a log line\n")
	assert.Equal(t, 2, CountEntries(data))
}

func TestRotateFirstSequence(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, 3)

	res, err := Rotate(path, "20260729", time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC), config.WriterConfig{Fsync: false})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Record.Sequence)
	assert.Empty(t, res.Record.PreviousPath)
	assert.Empty(t, res.Record.ChainPreviousHash)
	assert.NotEmpty(t, res.Record.ChainRootHash)

	archived, err := os.ReadFile(res.ArchivedPath)
	require.NoError(t, err)
	assert.Equal(t, 3, CountEntries(archived))

	active, err := os.ReadFile(path)
	require.NoError(t, err)
	fields, ok := ParseHeaderFields(active)
	require.True(t, ok)
	assert.Equal(t, 1, fields.Sequence)
}

func TestRotationChain(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, 3)
	cfg := config.WriterConfig{Fsync: false}

	r1, err := Rotate(path, "seq1", time.Now(), cfg)
	require.NoError(t, err)

	activeAfterFirst, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(activeAfterFirst, []byte(sampleLine+sampleLine)...), 0o644))

	r2, err := Rotate(path, "seq2", time.Now(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, r2.Record.Sequence)
	archivedAtSecondRotation, err := os.ReadFile(r2.ArchivedPath)
	require.NoError(t, err)
	expectedHash := atomicwrite.ShaHex(archivedAtSecondRotation)
	assert.Equal(t, expectedHash, r2.Record.ChainPreviousHash)
	assert.Equal(t, r1.Record.ChainRootHash, r2.Record.ChainRootHash)

	require.NoError(t, VerifyChain(path))
}

func TestRotateOnEmptyLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "progress.md")

	res, err := Rotate(path, "first", time.Now(), config.WriterConfig{Fsync: false})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Record.Sequence)
}

func TestCheckThreshold(t *testing.T) {
	ok, msg := CheckThreshold(200, 150)
	assert.False(t, ok)
	assert.Empty(t, msg)

	ok, msg = CheckThreshold(200, 201)
	assert.True(t, ok)
	assert.Contains(t, msg, "200")
}
