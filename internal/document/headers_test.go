package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeadersFixesATXSpacing(t *testing.T) {
	out, err := NormalizeHeaders("#Title\n##  Subtitle  \n")
	require.NoError(t, err)
	assert.Equal(t, "# Title\n## Subtitle\n", out)
}

func TestNormalizeHeadersConvertsSetext(t *testing.T) {
	out, err := NormalizeHeaders("Title\n=====\n\nSubtitle\n-----\n")
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\n## Subtitle\n", out)
}

func TestNormalizeHeadersSkipsFencedCode(t *testing.T) {
	body := "# Real\n\n```\n#NotAHeading\nFake\n----\n```\n"
	out, err := NormalizeHeaders(body)
	require.NoError(t, err)
	assert.Equal(t, body, out)
}

func TestNormalizeHeadersIsIdempotent(t *testing.T) {
	body := "#Messy\nText\n=====\n"
	once, err := NormalizeHeaders(body)
	require.NoError(t, err)
	twice, err := NormalizeHeaders(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestNormalizeHeadersTrimsTrailingWhitespace(t *testing.T) {
	out, err := NormalizeHeaders("plain line   \n")
	require.NoError(t, err)
	assert.Equal(t, "plain line\n", out)
}
