package chromemdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"geotech-rag/internal/models"
)

var (
	ErrEmptyIndex        = errors.New("cannot build an index from zero chunks")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrIndexNotFound     = errors.New("persisted index not found")
	ErrIndexCorrupt      = errors.New("persisted index is corrupt")
)

const (
	metaSource  = "source"
	metaPage    = "page"
	metaChunkID = "chunk_id"
	metaSeq     = "seq"
)

// Entry is a chunk with its embedding. Seq is the insertion order.
type Entry struct {
	Seq       int
	Chunk     models.Chunk
	Embedding []float32
}

// Index is an in-memory chromem collection of chunk embeddings
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimension  int
}

type manifest struct {
	Collection string `json:"collection"`
	Dimension  int    `json:"dimension"`
	Count      int    `json:"count"`
}

// Build embeds all chunk texts with one batch call and indexes them in order.
func Build(ctx context.Context, chunks []models.Chunk, provider embeddings.Embedder) (*Index, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyIndex
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrDimensionMismatch, len(vectors), len(chunks))
	}
	entries := make([]Entry, len(chunks))
	for i := range chunks {
		entries[i] = Entry{Seq: i, Chunk: chunks[i], Embedding: vectors[i]}
	}
	return FromEntries(ctx, entries, provider)
}

// FromEntries indexes precomputed embeddings without calling the provider.
// provider is kept as the collection's embedding function.
func FromEntries(ctx context.Context, entries []Entry, provider embeddings.Embedder) (*Index, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyIndex
	}
	dimension := len(entries[0].Embedding)
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		if len(e.Embedding) == 0 || len(e.Embedding) != dimension {
			return nil, fmt.Errorf("%w: entry %d has %d dimensions, want %d", ErrDimensionMismatch, e.Seq, len(e.Embedding), dimension)
		}
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(e.Seq),
			Content:   e.Chunk.Content,
			Metadata:  chunkMetadata(e.Seq, e.Chunk),
			Embedding: e.Embedding,
		}
	}

	db := chromem.NewDB()
	c, err := db.CreateCollection(models.CollectionName, nil, embedFunc(provider))
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Int("count", len(docs)).Int("dimension", dimension).Msg("Built vector index")
	return &Index{db: db, collection: c, dimension: dimension}, nil
}

func (i *Index) Count() int {
	return i.collection.Count()
}

func (i *Index) Dimension() int {
	return i.dimension
}

// Search returns up to k chunks ordered by descending cosine similarity.
// Equal scores keep insertion order.
func (i *Index) Search(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error) {
	if len(query) != i.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), i.dimension)
	}
	if k <= 0 {
		return nil, nil
	}
	// chromem does not order ties, so rank the whole collection ourselves
	results, err := i.collection.QueryEmbedding(ctx, query, i.collection.Count(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	hits := make([]scoredEntry, 0, len(results))
	for _, r := range results {
		seq, chunk, err := chunkFromMetadata(r.Content, r.Metadata)
		if err != nil {
			return nil, err
		}
		hits = append(hits, scoredEntry{seq: seq, chunk: models.ScoredChunk{Chunk: chunk, Score: r.Similarity}})
	}
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].chunk.Score != hits[b].chunk.Score {
			return hits[a].chunk.Score > hits[b].chunk.Score
		}
		return hits[a].seq < hits[b].seq
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]models.ScoredChunk, len(hits))
	for n, h := range hits {
		out[n] = h.chunk
	}
	return out, nil
}

// Entries returns every indexed entry in insertion order
func (i *Index) Entries(ctx context.Context) ([]Entry, error) {
	entries := make([]Entry, 0, i.Count())
	for seq := 0; seq < i.Count(); seq++ {
		doc, err := i.collection.GetByID(ctx, strconv.Itoa(seq))
		if err != nil {
			return nil, fmt.Errorf("failed to read entry %d: %w", seq, err)
		}
		_, chunk, err := chunkFromMetadata(doc.Content, doc.Metadata)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Seq: seq, Chunk: chunk, Embedding: doc.Embedding})
	}
	return entries, nil
}

// Persist exports the collection to dir/index.gob and writes a manifest
// next to it. An empty encryptionKey stores the export unencrypted.
func (i *Index) Persist(dir, encryptionKey string) error {
	if err := i.db.ExportToFile(filepath.Join(dir, models.IndexFileName), false, encryptionKey, models.CollectionName); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	m := manifest{Collection: models.CollectionName, Dimension: i.dimension, Count: i.Count()}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, models.ManifestFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Load restores an index written by Persist. It fails with ErrIndexNotFound
// when nothing was persisted at dir and with ErrIndexCorrupt for anything it
// cannot fully restore.
func Load(dir, encryptionKey string, provider embeddings.Embedder) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, models.ManifestFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, dir)
		}
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: bad manifest: %v", ErrIndexCorrupt, err)
	}
	if m.Collection == "" || m.Dimension <= 0 || m.Count <= 0 {
		return nil, fmt.Errorf("%w: incomplete manifest", ErrIndexCorrupt)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(filepath.Join(dir, models.IndexFileName), encryptionKey, m.Collection); err != nil {
		return nil, fmt.Errorf("%w: failed to import database: %v", ErrIndexCorrupt, err)
	}
	c := db.GetCollection(m.Collection, embedFunc(provider))
	if c == nil {
		return nil, fmt.Errorf("%w: collection %s missing", ErrIndexCorrupt, m.Collection)
	}
	if c.Count() != m.Count {
		return nil, fmt.Errorf("%w: expected %d entries, found %d", ErrIndexCorrupt, m.Count, c.Count())
	}
	log.Debug().Str("dir", dir).Int("count", m.Count).Msg("Loaded vector index")
	return &Index{db: db, collection: c, dimension: m.Dimension}, nil
}

type scoredEntry struct {
	seq   int
	chunk models.ScoredChunk
}

func embedFunc(provider embeddings.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		if provider == nil {
			return nil, errors.New("no embedding provider configured")
		}
		return provider.EmbedQuery(ctx, text)
	}
}

func chunkMetadata(seq int, c models.Chunk) map[string]string {
	return map[string]string{
		metaSource:  c.Source,
		metaPage:    strconv.Itoa(c.Page),
		metaChunkID: strconv.Itoa(c.ChunkID),
		metaSeq:     strconv.Itoa(seq),
	}
}

func chunkFromMetadata(content string, meta map[string]string) (int, models.Chunk, error) {
	seq, err := strconv.Atoi(meta[metaSeq])
	if err != nil {
		return 0, models.Chunk{}, fmt.Errorf("%w: bad seq metadata %q", ErrIndexCorrupt, meta[metaSeq])
	}
	page, err := strconv.Atoi(meta[metaPage])
	if err != nil {
		return 0, models.Chunk{}, fmt.Errorf("%w: bad page metadata %q", ErrIndexCorrupt, meta[metaPage])
	}
	chunkID, _ := strconv.Atoi(meta[metaChunkID])
	return seq, models.Chunk{
		Content: content,
		Source:  meta[metaSource],
		Page:    page,
		ChunkID: chunkID,
	}, nil
}
