package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geotech-rag/internal/testutil"
)

func TestWithQueryCache_HitsSkipProvider(t *testing.T) {
	fake := &testutil.FakeEmbedder{}
	e := WithQueryCache(fake, "m", 8, time.Minute)
	ctx := context.Background()

	first, err := e.EmbedQuery(ctx, "What is a shallow foundation?")
	require.NoError(t, err)
	first[0] = 42 // callers must not be able to poison the cache

	second, err := e.EmbedQuery(ctx, "What is a shallow foundation?")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.QueryCalls)
	assert.NotEqual(t, float32(42), second[0])

	_, err = e.EmbedQuery(ctx, "What is a pile?")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.QueryCalls)
}

func TestWithQueryCache_DocumentsPassThrough(t *testing.T) {
	fake := &testutil.FakeEmbedder{}
	e := WithQueryCache(fake, "m", 8, time.Minute)
	vecs, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 1, fake.DocumentCalls)
}

func TestWithQueryCache_ErrorsAreNotCached(t *testing.T) {
	fake := &testutil.FakeEmbedder{Err: errors.New("unauthorized")}
	e := WithQueryCache(fake, "m", 8, time.Minute)
	_, err := e.EmbedQuery(context.Background(), "q")
	require.Error(t, err)

	fake.Err = nil
	_, err = e.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.QueryCalls)
}

func TestWithQueryCache_Disabled(t *testing.T) {
	fake := &testutil.FakeEmbedder{}
	assert.Same(t, fake, WithQueryCache(fake, "m", 0, time.Minute))
}
