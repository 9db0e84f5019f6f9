package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitJoinRoundtrip(t *testing.T) {
	body := "line1\nline2\nline3\n"
	lines := Split(body)
	require.Equal(t, 3, lines.Count())
	assert.Equal(t, "line1", lines.At(1))
	assert.Equal(t, "line3", lines.At(3))
	assert.Equal(t, body, lines.Join())
}

func TestSplitNoTrailingNewline(t *testing.T) {
	body := "line1\nline2"
	lines := Split(body)
	require.Equal(t, 2, lines.Count())
	assert.Equal(t, body, lines.Join())
}

func TestReplaceRange(t *testing.T) {
	lines := Split("a\nb\nc\nd\n")
	out := lines.ReplaceRange(2, 3, "X\nY\nZ")
	assert.Equal(t, "a\nX\nY\nZ\nd\n", out.Join())
}

func TestReplaceRangeSingleLine(t *testing.T) {
	lines := Split("a\nb\nc\n")
	out := lines.ReplaceRange(2, 2, "B")
	assert.Equal(t, "a\nB\nc\n", out.Join())
}

func TestInsertAfter(t *testing.T) {
	lines := Split("a\nb\n")
	out := lines.InsertAfter(1, "inserted")
	assert.Equal(t, "a\ninserted\nb\n", out.Join())
}

func TestInsertAtStart(t *testing.T) {
	lines := Split("a\nb\n")
	out := lines.InsertAfter(0, "first")
	assert.Equal(t, "first\na\nb\n", out.Join())
}

func TestLastNonBlank(t *testing.T) {
	lines := Split("a\nb\n\n  \n")
	assert.Equal(t, 2, lines.LastNonBlank())
}

func TestInBounds(t *testing.T) {
	lines := Split("a\nb\n")
	assert.True(t, lines.InBounds(1))
	assert.True(t, lines.InBounds(2))
	assert.False(t, lines.InBounds(0))
	assert.False(t, lines.InBounds(3))
}
