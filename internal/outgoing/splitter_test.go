package outgoing

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLongMessage_ShortTextUnchanged(t *testing.T) {
	out := SplitLongMessage("hello", 100)
	assert.Equal(t, []string{"hello"}, out)
}

func TestSplitLongMessage_PrefersNewlineBoundary(t *testing.T) {
	text := "first line\nsecond line that is quite long here"
	out := SplitLongMessage(text, 15)
	require.GreaterOrEqual(t, len(out), 2)
	assert.True(t, strings.HasSuffix(out[0], "line") || strings.HasSuffix(out[0], "\n") || !strings.Contains(out[0], "\n"))
}

func TestSplitLongMessage_RoundTripsAllCodePoints(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 50)
	pieces := SplitLongMessage(text, 20)
	assert.Equal(t, text, strings.Join(pieces, ""))
	assert.Equal(t, utf8.RuneCountInString(text), utf8.RuneCountInString(strings.Join(pieces, "")))
}

func TestSplitLongMessage_NoBoundaryHardCuts(t *testing.T) {
	text := strings.Repeat("x", 50)
	pieces := SplitLongMessage(text, 10)
	for _, p := range pieces {
		assert.LessOrEqual(t, utf8.RuneCountInString(p), 10)
	}
	assert.Equal(t, text, strings.Join(pieces, ""))
}

func TestSplitLongMessage_HardCutOnSpaceDoesNotDropSeparator(t *testing.T) {
	text := "1234567890 1234567890"
	pieces := SplitLongMessage(text, 10)
	assert.Equal(t, text, strings.Join(pieces, ""))
}

func TestChunkAttachments_SplitsIntoBatches(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	chunks := ChunkAttachments(ids, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunks)
}

func TestChunkAttachments_ZeroMeansOneChunk(t *testing.T) {
	ids := []string{"a", "b"}
	chunks := ChunkAttachments(ids, 0)
	assert.Equal(t, [][]string{{"a", "b"}}, chunks)
}
