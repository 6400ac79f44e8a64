package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geotech-rag/internal/models"
)

func TestNewChunker_Validation(t *testing.T) {
	_, err := NewChunker(0, 0)
	assert.ErrorIs(t, err, ErrInvalidChunkConfig)

	_, err = NewChunker(10, 10)
	assert.ErrorIs(t, err, ErrInvalidChunkConfig)

	_, err = NewChunker(10, -1)
	assert.ErrorIs(t, err, ErrInvalidChunkConfig)

	_, err = NewChunker(10, 0)
	assert.NoError(t, err)
}

func TestChunkContent_SlidingWindow(t *testing.T) {
	c, err := NewChunker(4, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"abcd", "cdef", "efgh"}, c.chunkContent("abcdefgh"))
	assert.Equal(t, []string{"abcd", "cdef", "efg"}, c.chunkContent("abcdefg"))
	assert.Equal(t, []string{"ab"}, c.chunkContent("ab"))
	assert.Nil(t, c.chunkContent(""))
}

func TestChunkContent_ConsecutiveChunksShareOverlap(t *testing.T) {
	const maxChars, overlap = 1000, 200
	c, err := NewChunker(maxChars, overlap)
	require.NoError(t, err)

	var sb strings.Builder
	for i := 0; sb.Len() < 4321; i++ {
		sb.WriteString("soil layer ")
		sb.WriteString(strings.Repeat("x", i%7))
		sb.WriteString(" ")
	}
	chunks := c.chunkContent(sb.String())
	require.Greater(t, len(chunks), 2)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), maxChars)
		if i == 0 {
			continue
		}
		prev := []rune(chunks[i-1])
		cur := []rune(chunk)
		assert.Equal(t, string(prev[len(prev)-overlap:]), string(cur[:overlap]), "chunk %d", i)
	}
}

func TestChunkContent_MultibyteRunes(t *testing.T) {
	c, err := NewChunker(3, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"äöü", "üßé"}, c.chunkContent("äöüßé"))
}

func TestSplit_KeepsPageBoundariesAndMetadata(t *testing.T) {
	c, err := NewChunker(5, 1)
	require.NoError(t, err)
	docs := []models.Document{
		{Content: "abcdefgh", Source: "a.pdf", Page: 1},
		{Content: "xyz", Source: "a.pdf", Page: 2},
	}
	chunks := c.Split(docs)
	require.Len(t, chunks, 3)
	assert.Equal(t, models.Chunk{Content: "abcde", Source: "a.pdf", Page: 1, ChunkID: 1}, chunks[0])
	assert.Equal(t, models.Chunk{Content: "efgh", Source: "a.pdf", Page: 1, ChunkID: 2}, chunks[1])
	assert.Equal(t, models.Chunk{Content: "xyz", Source: "a.pdf", Page: 2, ChunkID: 1}, chunks[2])
}

func TestSplit_Idempotent(t *testing.T) {
	c, err := NewChunker(7, 3)
	require.NoError(t, err)
	docs := []models.Document{{Content: "Shallow foundations transfer load near the surface.", Source: "f.pdf", Page: 3}}
	assert.Equal(t, c.Split(docs), c.Split(docs))
}
