package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadParams(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero_size", 0, 0},
		{"negative_size", -1, 0},
		{"negative_overlap", 10, -1},
		{"overlap_equal_size", 10, 10},
		{"overlap_above_size", 10, 11},
	}
	for _, cse := range cases {
		t.Run(cse.name, func(t *testing.T) {
			_, err := New(cse.size, cse.overlap)
			assert.Error(t, err)
		})
	}
}

func TestChunkEmptyText(t *testing.T) {
	c, err := New(DefaultSize, DefaultOverlap)
	require.NoError(t, err)
	assert.Empty(t, c.Chunk(""))
}

func TestChunkShortText(t *testing.T) {
	c, err := New(DefaultSize, DefaultOverlap)
	require.NoError(t, err)

	text := strings.Repeat("a", 499)
	chunks := c.Chunk(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])

	text = strings.Repeat("b", 500)
	chunks = c.Chunk(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkWindowOffsets(t *testing.T) {
	c, err := New(DefaultSize, DefaultOverlap)
	require.NoError(t, err)

	// 1200 characters with distinct positions: windows at 0-500, 450-950, 900-1200.
	runes := make([]rune, 1200)
	for i := range runes {
		runes[i] = rune('a' + i%26)
	}
	text := string(runes)

	chunks := c.Chunk(text)
	require.Len(t, chunks, 3)
	assert.Equal(t, string(runes[0:500]), chunks[0])
	assert.Equal(t, string(runes[450:950]), chunks[1])
	assert.Equal(t, string(runes[900:1200]), chunks[2])
}

func TestChunkOverlapIsExact(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)

	runes := make([]rune, 1000)
	for i := range runes {
		runes[i] = rune('a' + i%26)
	}
	chunks := c.Chunk(string(runes))
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		assert.Equal(t, string(prev[len(prev)-20:]), string(cur[:20]),
			"chunk %d should start with the last 20 chars of chunk %d", i, i-1)
	}
}

func TestChunkReconstructsText(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)

	runes := make([]rune, 1234)
	for i := range runes {
		runes[i] = rune('a' + i%26)
	}
	text := string(runes)

	chunks := c.Chunk(text)
	var sb strings.Builder
	for i, ch := range chunks {
		r := []rune(ch)
		if i == 0 {
			sb.WriteString(ch)
		} else {
			sb.WriteString(string(r[20:]))
		}
	}
	assert.Equal(t, text, sb.String())
}

func TestChunkUnicode(t *testing.T) {
	c, err := New(4, 1)
	require.NoError(t, err)

	chunks := c.Chunk("héllö wörld")
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch)), 4)
	}
	// Overlap counts runes, not bytes.
	require.Greater(t, len(chunks), 1)
	first := []rune(chunks[0])
	second := []rune(chunks[1])
	assert.Equal(t, first[len(first)-1], second[0])
}
