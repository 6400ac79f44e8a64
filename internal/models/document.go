package models

import "time"

// Document is one page of text extracted from a PDF
type Document struct {
	Content string
	Source  string
	Page    int
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
	ChunkID int    `json:"chunk_id"`
}

// ScoredChunk is a chunk returned by a similarity search
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

// IndexMetadata records when an index was built and from which files.
type IndexMetadata struct {
	BuiltAt        time.Time `json:"built_at"`
	PDFFiles       []string  `json:"pdf_files"`
	SkippedFiles   []string  `json:"skipped_files,omitempty"`
	PageCount      int       `json:"page_count"`
	ChunkCount     int       `json:"chunk_count"`
	Dimension      int       `json:"dimension"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
}
