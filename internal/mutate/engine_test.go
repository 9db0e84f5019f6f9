package mutate

import (
	"testing"

	"github.com/scribehq/dle/internal/dlerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceRangeBasic(t *testing.T) {
	body := "a\nb\nc\nd\n"
	out, err := ReplaceRange(body, 2, 3, "X\nY")
	require.NoError(t, err)
	assert.Equal(t, "a\nX\nY\nd\n", out)
}

func TestReplaceRangeOutOfBounds(t *testing.T) {
	_, err := ReplaceRange("a\nb\n", 2, 5, "x")
	require.Error(t, err)
	assert.Equal(t, dlerrors.RangeOutOfBounds, dlerrors.CodeOf(err))
}

func TestReplaceBlockReplacesThroughBlankLine(t *testing.T) {
	body := "# Title\n\nSTATUS: pending\nline two\n\nnext para\n"
	out, err := ReplaceBlock(body, "STATUS:", "STATUS: done")
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nSTATUS: done\n\nnext para\n", out)
}

func TestReplaceBlockAmbiguous(t *testing.T) {
	body := "STATUS: a\n\nSTATUS: b\n\n"
	_, err := ReplaceBlock(body, "STATUS:", "x")
	require.Error(t, err)
	assert.Equal(t, dlerrors.AmbiguousAnchor, dlerrors.CodeOf(err))
}

func TestReplaceBlockNotFound(t *testing.T) {
	_, err := ReplaceBlock("no match here\n", "STATUS:", "x")
	require.Error(t, err)
	assert.Equal(t, dlerrors.AnchorNotFound, dlerrors.CodeOf(err))
}

func TestReplaceSectionPreservesHeadingAndAnchor(t *testing.T) {
	body := "<!-- ID: overview -->\n## Overview\nold content\n\n## Next\nmore\n"
	out, err := ReplaceSection(body, "overview", "new body")
	require.NoError(t, err)
	assert.Equal(t, "<!-- ID: overview -->\n## Overview\nnew body\n## Next\nmore\n", out)
}

func TestAppendContentEnsuresBlankSeparator(t *testing.T) {
	body := "# Title\nSome text\n"
	out := AppendContent(body, "New entry")
	assert.Equal(t, "# Title\nSome text\n\nNew entry\n", out)
}

func TestStatusUpdateTogglesCheckbox(t *testing.T) {
	body := "<!-- ID: tasks -->\n## Tasks\n- [ ] write tests\n- [ ] ship it\n"
	out, err := StatusUpdate(body, "tasks", "ship", true, "")
	require.NoError(t, err)
	assert.Contains(t, out, "- [x] ship it")
	assert.Contains(t, out, "- [ ] write tests")
}

func TestStatusUpdateAddsProofMarker(t *testing.T) {
	body := "<!-- ID: tasks -->\n## Tasks\n- [ ] ship it\n"
	out, err := StatusUpdate(body, "tasks", "ship", true, "PR #42")
	require.NoError(t, err)
	assert.Contains(t, out, "- [x] ship it (proof: PR #42)")
}

func TestStatusUpdateReplacesExistingProof(t *testing.T) {
	body := "<!-- ID: tasks -->\n## Tasks\n- [x] ship it (proof: PR #41)\n"
	out, err := StatusUpdate(body, "tasks", "ship", true, "PR #42")
	require.NoError(t, err)
	assert.Contains(t, out, "- [x] ship it (proof: PR #42)")
	assert.NotContains(t, out, "PR #41")
}

func TestStatusUpdateTokenNotFound(t *testing.T) {
	body := "<!-- ID: tasks -->\n## Tasks\n- [ ] something else\n"
	_, err := StatusUpdate(body, "tasks", "ship", true, "")
	require.Error(t, err)
	assert.Equal(t, dlerrors.TokenNotFound, dlerrors.CodeOf(err))
}

func TestApplyPatchSeesEarlierEdits(t *testing.T) {
	body := "a\nb\nc\n"
	edits := []Edit{
		{Kind: KindReplaceRange, StartLine: 2, EndLine: 2, Content: "B"},
		{Kind: KindAppend, Content: "tail"},
	}
	out, err := ApplyPatch(body, edits)
	require.NoError(t, err)
	assert.Equal(t, "a\nB\nc\n\ntail\n", out)
}

func TestApplyPatchDiscardsAllOnFailure(t *testing.T) {
	body := "a\nb\nc\n"
	edits := []Edit{
		{Kind: KindReplaceRange, StartLine: 2, EndLine: 2, Content: "B"},
		{Kind: KindReplaceRange, StartLine: 10, EndLine: 12, Content: "x"},
	}
	out, err := ApplyPatch(body, edits)
	require.Error(t, err)
	assert.Equal(t, body, out)
}
