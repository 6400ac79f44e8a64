package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"

	"geotech-rag/internal/chromemdb"
	"geotech-rag/internal/models"
)

const insertBatchSize = 500

type IndexBuild struct {
	bun.BaseModel  `bun:"table:index_builds,alias:b"`
	ID             int64     `bun:"id,pk,autoincrement"`
	BuiltAt        time.Time `bun:"built_at,notnull"`
	PDFFiles       []string  `bun:"pdf_files,array"`
	SkippedFiles   []string  `bun:"skipped_files,array"`
	PageCount      int       `bun:"page_count"`
	ChunkCount     int       `bun:"chunk_count,notnull"`
	Dimension      int       `bun:"dimension,notnull"`
	EmbeddingModel string    `bun:"embedding_model"`
}

type IndexEntry struct {
	bun.BaseModel `bun:"table:index_entries,alias:e"`
	Seq           int             `bun:"seq,pk"`
	Source        string          `bun:"source,notnull"`
	Page          int             `bun:"page,notnull"`
	ChunkID       int             `bun:"chunk_id,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
}

// PGStore keeps the index snapshot in postgres. Only one snapshot exists at a
// time; Save replaces it in a single transaction.
type PGStore struct {
	db *bun.DB
}

func NewPGStore(db *bun.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Exists(ctx context.Context) (bool, error) {
	n, err := s.db.NewSelect().Model((*IndexBuild)(nil)).Count(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count index builds: %w", err)
	}
	return n > 0, nil
}

func (s *PGStore) Save(ctx context.Context, idx *chromemdb.Index, meta models.IndexMetadata) error {
	entries, err := idx.Entries(ctx)
	if err != nil {
		return err
	}
	rows := make([]IndexEntry, len(entries))
	for i, e := range entries {
		rows[i] = IndexEntry{
			Seq:       e.Seq,
			Source:    e.Chunk.Source,
			Page:      e.Chunk.Page,
			ChunkID:   e.Chunk.ChunkID,
			Content:   e.Chunk.Content,
			Embedding: pgvector.NewVector(e.Embedding),
		}
	}
	build := &IndexBuild{
		BuiltAt:        meta.BuiltAt,
		PDFFiles:       meta.PDFFiles,
		SkippedFiles:   meta.SkippedFiles,
		PageCount:      meta.PageCount,
		ChunkCount:     len(rows),
		Dimension:      idx.Dimension(),
		EmbeddingModel: meta.EmbeddingModel,
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := clearSnapshot(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(build).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert index build: %w", err)
		}
		for start := 0; start < len(rows); start += insertBatchSize {
			end := min(start+insertBatchSize, len(rows))
			batch := rows[start:end]
			if _, err := tx.NewInsert().Model(&batch).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert index entries: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Int("chunks", len(rows)).Msg("Saved vector index to postgres")
	return nil
}

func (s *PGStore) Load(ctx context.Context, provider embeddings.Embedder) (*chromemdb.Index, error) {
	build, err := s.latestBuild(ctx)
	if err != nil {
		return nil, err
	}
	var rows []IndexEntry
	if err := s.db.NewSelect().Model(&rows).Order("seq ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to read entries: %v", chromemdb.ErrIndexCorrupt, err)
	}
	if len(rows) != build.ChunkCount {
		return nil, fmt.Errorf("%w: expected %d entries, found %d", chromemdb.ErrIndexCorrupt, build.ChunkCount, len(rows))
	}
	entries := make([]chromemdb.Entry, len(rows))
	for i, r := range rows {
		entries[i] = chromemdb.Entry{
			Seq: r.Seq,
			Chunk: models.Chunk{
				Content: r.Content,
				Source:  r.Source,
				Page:    r.Page,
				ChunkID: r.ChunkID,
			},
			Embedding: r.Embedding.Slice(),
		}
	}
	idx, err := chromemdb.FromEntries(ctx, entries, provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chromemdb.ErrIndexCorrupt, err)
	}
	return idx, nil
}

func (s *PGStore) Metadata(ctx context.Context) (*models.IndexMetadata, error) {
	build, err := s.latestBuild(ctx)
	if err != nil {
		return nil, err
	}
	return &models.IndexMetadata{
		BuiltAt:        build.BuiltAt,
		PDFFiles:       build.PDFFiles,
		SkippedFiles:   build.SkippedFiles,
		PageCount:      build.PageCount,
		ChunkCount:     build.ChunkCount,
		Dimension:      build.Dimension,
		EmbeddingModel: build.EmbeddingModel,
	}, nil
}

func (s *PGStore) Discard(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return clearSnapshot(ctx, tx)
	})
}

func (s *PGStore) latestBuild(ctx context.Context) (*IndexBuild, error) {
	build := new(IndexBuild)
	err := s.db.NewSelect().Model(build).Order("id DESC").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chromemdb.ErrIndexNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index build: %w", err)
	}
	return build, nil
}

func clearSnapshot(ctx context.Context, tx bun.Tx) error {
	if _, err := tx.NewDelete().Model((*IndexEntry)(nil)).Where("TRUE").Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear index entries: %w", err)
	}
	if _, err := tx.NewDelete().Model((*IndexBuild)(nil)).Where("TRUE").Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear index builds: %w", err)
	}
	return nil
}
