package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNoFrontmatter(t *testing.T) {
	doc, err := Parse([]byte("Just a regular markdown document.\n\nWith multiple paragraphs."))
	require.NoError(t, err)
	assert.False(t, doc.HasFrontmatter())
	assert.Equal(t, "Just a regular markdown document.\n\nWith multiple paragraphs.", doc.Body)
	assert.Equal(t, 1, doc.LineOffset)
}

func TestParseWithFrontmatter(t *testing.T) {
	content := "---\nid: p1\ntitle: Demo\n---\n# Title\nBody text\n"
	doc, err := Parse([]byte(content))
	require.NoError(t, err)
	require.True(t, doc.HasFrontmatter())
	assert.Equal(t, "p1", doc.Fields["id"])
	assert.Equal(t, "Demo", doc.Fields["title"])
	assert.Equal(t, "# Title\nBody text\n", doc.Body)
	// "---\n" + "id: p1\n" + "title: Demo\n" + "---\n" = 4 lines consumed.
	assert.Equal(t, 5, doc.LineOffset)
}

func TestParseUnclosedFrontmatter(t *testing.T) {
	_, err := Parse([]byte("---\ntitle: Test\nNo closing delimiter"))
	require.Error(t, err)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("---\ntitle: [invalid yaml\n---\nBody"))
	require.Error(t, err)
}

func TestRenderIsByteExact(t *testing.T) {
	content := "---\nid: p1\ntitle:   Demo   \n---\nBody text\n"
	doc, err := Parse([]byte(content))
	require.NoError(t, err)

	doc.Body = "new body\n"
	out := Render(doc)

	assert.Equal(t, "---\nid: p1\ntitle:   Demo   \n---\nnew body\n", string(out))
}

func TestRoundtripPreservesRawBytes(t *testing.T) {
	content := "---\nlabels:\n  - bug\n  - frontend\nweird_spacing:    value\n---\nBody\n"
	doc, err := Parse([]byte(content))
	require.NoError(t, err)

	out := Render(doc)
	assert.Equal(t, content, string(out))
}

func TestUpdateFieldsPreservesKeyOrderAndUnknownKeys(t *testing.T) {
	content := "---\nid: p1\ntitle: Old Title\nstatus: draft\n---\nBody\n"
	doc, err := Parse([]byte(content))
	require.NoError(t, err)

	err = doc.UpdateFields(map[string]string{"title": "New Title"})
	require.NoError(t, err)

	out := string(Render(doc))
	assert.Equal(t, "---\nid: p1\ntitle: New Title\nstatus: draft\n---\nBody\n", out)
	assert.Equal(t, "New Title", doc.Fields["title"])
	assert.Equal(t, "p1", doc.Fields["id"], "unrelated keys must survive untouched")
}

func TestUpdateFieldsAppendsMissingKey(t *testing.T) {
	content := "---\nid: p1\n---\nBody\n"
	doc, err := Parse([]byte(content))
	require.NoError(t, err)

	err = doc.UpdateFields(map[string]string{"status": "done"})
	require.NoError(t, err)

	out := string(Render(doc))
	assert.Contains(t, out, "id: p1\n")
	assert.Contains(t, out, "status: done\n")
	assert.Contains(t, out, "---\nBody\n")
}

func TestUpdateFieldsQuotesSpecialCharacters(t *testing.T) {
	content := "---\ntitle: Old\n---\nBody\n"
	doc, err := Parse([]byte(content))
	require.NoError(t, err)

	require.NoError(t, doc.UpdateFields(map[string]string{"title": "Fix: bug #123"}))

	reparsed, err := Parse(Render(doc))
	require.NoError(t, err)
	assert.Equal(t, "Fix: bug #123", reparsed.Fields["title"])
}

func TestUpdateFieldsNoFrontmatterErrors(t *testing.T) {
	doc, err := Parse([]byte("plain body"))
	require.NoError(t, err)

	err = doc.UpdateFields(map[string]string{"title": "x"})
	assert.Error(t, err)
}

func TestToFileLine(t *testing.T) {
	content := "---\nid: p1\n---\n# Title\nline2\n"
	doc, err := Parse([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, doc.LineOffset, doc.ToFileLine(1))
	assert.Equal(t, 1, (&Document{LineOffset: 1}).ToFileLine(1))
}
