package chromemdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"geotech-rag/internal/helper"
	"geotech-rag/internal/models"
)

// DirStore keeps one index snapshot in a directory: index.gob, index.json
// and metadata.json. Dir is a symlink to the current versioned sibling
// directory, so a save replaces the snapshot in one rename.
type DirStore struct {
	Dir           string
	EncryptionKey string
}

func NewDirStore(dir, encryptionKey string) *DirStore {
	return &DirStore{Dir: dir, EncryptionKey: encryptionKey}
}

// Exists reports whether the storage directory is present. A present but
// broken directory still counts, so Load reports it as corrupt.
func (s *DirStore) Exists(_ context.Context) (bool, error) {
	return helper.DirExists(s.Dir), nil
}

// Save writes the snapshot into a new sibling directory and publishes it.
func (s *DirStore) Save(_ context.Context, idx *Index, meta models.IndexMetadata) error {
	parent := filepath.Dir(filepath.Clean(s.Dir))
	if err := helper.CreateFolder(parent); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(parent, filepath.Base(s.Dir)+".v-")
	if err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	published := false
	defer func() {
		if !published {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := idx.Persist(tmp, s.EncryptionKey); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, models.MetadataFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := helper.PublishDir(tmp, s.Dir); err != nil {
		return fmt.Errorf("failed to publish index: %w", err)
	}
	published = true
	log.Info().Str("dir", s.Dir).Int("chunks", idx.Count()).Msg("Saved vector index")
	return nil
}

func (s *DirStore) Load(_ context.Context, provider embeddings.Embedder) (*Index, error) {
	return Load(s.Dir, s.EncryptionKey, provider)
}

// Metadata reads metadata.json. It returns ErrIndexNotFound when no
// snapshot has been written.
func (s *DirStore) Metadata(_ context.Context) (*models.IndexMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, models.MetadataFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrIndexNotFound
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var meta models.IndexMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: bad metadata: %v", ErrIndexCorrupt, err)
	}
	return &meta, nil
}

func (s *DirStore) Discard(_ context.Context) error {
	if err := helper.RemovePublishedDir(s.Dir); err != nil {
		return fmt.Errorf("failed to remove index dir: %w", err)
	}
	return nil
}
