package parser

import (
	"errors"
	"fmt"

	"geotech-rag/internal/models"
)

var ErrInvalidChunkConfig = errors.New("invalid chunk config")

// Chunker splits page text into fixed-size windows that overlap by a fixed
// number of characters. Sizes are counted in runes.
type Chunker struct {
	maxChars     int
	overlapChars int
}

func NewChunker(maxChars, overlapChars int) (*Chunker, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: max chars must be positive, got %d", ErrInvalidChunkConfig, maxChars)
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunkConfig, overlapChars, maxChars)
	}
	return &Chunker{maxChars: maxChars, overlapChars: overlapChars}, nil
}

// Split chunks every document separately; a chunk never spans two pages.
func (c *Chunker) Split(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		for i, text := range c.chunkContent(doc.Content) {
			chunks = append(chunks, models.Chunk{
				Content: text,
				Source:  doc.Source,
				Page:    doc.Page,
				ChunkID: i + 1,
			})
		}
	}
	return chunks
}

// chunk content into windows of maxChars advancing by maxChars-overlapChars
func (c *Chunker) chunkContent(content string) []string {
	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}
	step := c.maxChars - c.overlapChars
	var chunks []string
	for start := 0; ; start += step {
		end := min(start+c.maxChars, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
