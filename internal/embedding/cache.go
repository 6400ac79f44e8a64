package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
)

// WithQueryCache puts an expiring LRU cache in front of EmbedQuery. Batch
// document embedding is passed through untouched. A non-positive size or ttl
// returns e unchanged.
func WithQueryCache(e embeddings.Embedder, model string, size int, ttl time.Duration) embeddings.Embedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &queryCache{
		next:  e,
		model: model,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type queryCache struct {
	next  embeddings.Embedder
	model string
	cache *expirable.LRU[string, []float32]
}

func (q *queryCache) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return q.next.EmbedDocuments(ctx, texts)
}

func (q *queryCache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(q.model, text)
	if cached, ok := q.cache.Get(key); ok {
		log.Debug().Str("model", q.model).Msg("Query embedding cache hit")
		return cloneEmbedding(cached), nil
	}
	res, err := q.next.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	q.cache.Add(key, cloneEmbedding(res))
	return res, nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
