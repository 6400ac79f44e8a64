package rag

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"geotech-rag/internal/chromemdb"
	"geotech-rag/internal/config"
	"geotech-rag/internal/models"
	"geotech-rag/internal/parser"
)

// SnapshotStore is a durable home for one built index and its metadata.
type SnapshotStore interface {
	Exists(ctx context.Context) (bool, error)
	Save(ctx context.Context, idx *chromemdb.Index, meta models.IndexMetadata) error
	Load(ctx context.Context, provider embeddings.Embedder) (*chromemdb.Index, error)
	Metadata(ctx context.Context) (*models.IndexMetadata, error)
	Discard(ctx context.Context) error
}

type Snapshot struct {
	Index    *chromemdb.Index
	Metadata *models.IndexMetadata
	Loaded   bool
}

// Builder turns the PDF folder into an index snapshot, or loads the existing
// one. The snapshot is kept in memory and shared by every session until
// Discard.
type Builder struct {
	mu             sync.Mutex
	pdfDir         string
	chunker        *parser.Chunker
	store          SnapshotStore
	embeddingModel string
	dimensions     int
	now            func() time.Time
	current        *Snapshot
}

func NewBuilder(cfg *config.Config, store SnapshotStore) (*Builder, error) {
	chunker, err := parser.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &Builder{
		pdfDir:         cfg.PDFDir,
		chunker:        chunker,
		store:          store,
		embeddingModel: cfg.EmbedLLM.Model,
		dimensions:     cfg.EmbedLLM.Dimensions,
		now:            time.Now,
	}, nil
}

// BuildOrLoad returns the persisted snapshot when one exists, even if the PDF
// folder has changed since. Otherwise it indexes every PDF in the folder and
// persists the result. ErrNoDocuments means there was nothing to index, and
// ErrIndexIncompatible that the persisted index needs a rebuild.
func (b *Builder) BuildOrLoad(ctx context.Context, provider embeddings.Embedder) (*Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil {
		return &Snapshot{Index: b.current.Index, Metadata: b.current.Metadata, Loaded: true}, nil
	}
	exists, err := b.store.Exists(ctx)
	if err != nil {
		return nil, err
	}
	var snap *Snapshot
	if exists {
		snap, err = b.load(ctx, provider)
	} else {
		snap, err = b.build(ctx, provider)
	}
	if err != nil {
		return nil, err
	}
	b.current = snap
	return snap, nil
}

func (b *Builder) load(ctx context.Context, provider embeddings.Embedder) (*Snapshot, error) {
	idx, err := b.store.Load(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}
	meta, err := b.store.Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load index metadata: %w", err)
	}
	if err := b.checkCompatible(ctx, provider, meta); err != nil {
		return nil, err
	}
	log.Info().Int("chunks", idx.Count()).Time("built_at", meta.BuiltAt).Msg("Loaded existing index")
	return &Snapshot{Index: idx, Metadata: meta, Loaded: true}, nil
}

// checkCompatible rejects a snapshot embedded with another model, or whose
// dimension differs from what provider returns now. Without a configured
// dimension one query is embedded to find out.
func (b *Builder) checkCompatible(ctx context.Context, provider embeddings.Embedder, meta *models.IndexMetadata) error {
	if meta.EmbeddingModel != "" && b.embeddingModel != "" && meta.EmbeddingModel != b.embeddingModel {
		return fmt.Errorf("%w: index built with %s, provider uses %s", ErrIndexIncompatible, meta.EmbeddingModel, b.embeddingModel)
	}
	if meta.Dimension <= 0 {
		return nil
	}
	dim := b.dimensions
	if dim <= 0 {
		vec, err := provider.EmbedQuery(ctx, models.DimensionProbeText)
		if err != nil {
			return fmt.Errorf("failed to check embedding dimension: %w", err)
		}
		dim = len(vec)
	}
	if dim != meta.Dimension {
		return fmt.Errorf("%w: index has %d dimensions, provider returns %d", ErrIndexIncompatible, meta.Dimension, dim)
	}
	return nil
}

func (b *Builder) build(ctx context.Context, provider embeddings.Embedder) (*Snapshot, error) {
	names, err := parser.ListPDFs(b.pdfDir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		log.Info().Str("dir", b.pdfDir).Msg("No PDFs to index")
		return nil, ErrNoDocuments
	}

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(b.pdfDir, name)
	}
	docs, failures := parser.ExtractAll(paths)
	chunks := b.chunker.Split(docs)
	if len(chunks) == 0 {
		log.Info().Int("pdfs", len(names)).Msg("PDFs contain no extractable text")
		return nil, ErrNoDocuments
	}

	idx, err := chromemdb.Build(ctx, chunks, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	meta := models.IndexMetadata{
		BuiltAt:        b.now().UTC().Truncate(time.Second),
		PDFFiles:       names,
		PageCount:      len(docs),
		ChunkCount:     len(chunks),
		Dimension:      idx.Dimension(),
		EmbeddingModel: b.embeddingModel,
	}
	for _, f := range failures {
		meta.SkippedFiles = append(meta.SkippedFiles, filepath.Base(f.File))
	}
	if err := b.store.Save(ctx, idx, meta); err != nil {
		return nil, fmt.Errorf("failed to save index: %w", err)
	}
	log.Info().
		Int("pdfs", len(names)).
		Int("skipped", len(failures)).
		Int("pages", len(docs)).
		Int("chunks", len(chunks)).
		Msg("Built new index")
	return &Snapshot{Index: idx, Metadata: &meta}, nil
}

// Metadata describes the persisted snapshot. It returns
// chromemdb.ErrIndexNotFound when there is none.
func (b *Builder) Metadata(ctx context.Context) (*models.IndexMetadata, error) {
	return b.store.Metadata(ctx)
}

// Discard deletes the persisted snapshot so the next BuildOrLoad rebuilds.
func (b *Builder) Discard(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = nil
	if err := b.store.Discard(ctx); err != nil && !errors.Is(err, chromemdb.ErrIndexNotFound) {
		return err
	}
	log.Info().Msg("Discarded index")
	return nil
}

func (b *Builder) PDFDir() string {
	return b.pdfDir
}

// Staleness lists how the PDF folder differs from the files the persisted
// index was built from. The index is never updated to match.
type Staleness struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

func (s Staleness) Stale() bool {
	return len(s.Added) > 0 || len(s.Removed) > 0
}

func (b *Builder) Staleness(ctx context.Context) (*Staleness, error) {
	meta, err := b.store.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	names, err := parser.ListPDFs(b.pdfDir)
	if err != nil {
		return nil, err
	}
	indexed := make(map[string]bool, len(meta.PDFFiles))
	for _, name := range meta.PDFFiles {
		indexed[name] = true
	}
	current := make(map[string]bool, len(names))
	st := &Staleness{}
	for _, name := range names {
		current[name] = true
		if !indexed[name] {
			st.Added = append(st.Added, name)
		}
	}
	for _, name := range meta.PDFFiles {
		if !current[name] {
			st.Removed = append(st.Removed, name)
		}
	}
	return st, nil
}
