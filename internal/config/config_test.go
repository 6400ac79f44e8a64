package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.Equal(t, "vectorstore", cfg.StorageDir)
	assert.Equal(t, "OPENAI_API_KEY", cfg.APIKeyEnv)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatLLM.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbedLLM.Model)
	assert.Equal(t, BackendDir, cfg.Index.Backend)
	assert.True(t, cfg.RequiresKey())
}

func TestLoadConfig_ParsesValues(t *testing.T) {
	path := writeConfig(t, `
pdf_dir: docs
storage_dir: /tmp/idx
embed_llm:
  provider: ollama
  model: nomic-embed-text
  cache_size: 64
  cache_ttl: 10m
chat_llm:
  provider: ollama
  model: llama3
rag:
  chunk_size: 500
  chunk_overlap: 50
  top_k: 5
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "docs", cfg.PDFDir)
	assert.Equal(t, "/tmp/idx", cfg.StorageDir)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, 10*time.Minute, cfg.EmbedLLM.CacheTTL)
	assert.False(t, cfg.RequiresKey())
}

func TestLoadConfig_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"overlap too large": "rag:\n  chunk_size: 100\n  chunk_overlap: 100\n",
		"short key":         "rag:\n  encryption_key: short\n",
		"bad provider":      "chat_llm:\n  provider: gemini\n",
		"postgres no dsn":   "index:\n  backend: postgres\n",
		"bad backend":       "index:\n  backend: redis\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.RAG.EncryptionKey = "0123456789abcdef0123456789abcdef"
	cfg.Database.DSN = "postgres://rag:s3cret@db:5432/geotech?sslmode=disable"

	out := cfg.Redacted()
	assert.Equal(t, "xxxxx", out.RAG.EncryptionKey)
	assert.Equal(t, "postgres://rag:xxxxx@db:5432/geotech?sslmode=disable", out.Database.DSN)
	assert.NotContains(t, fmt.Sprintf("%+v", out), "s3cret")

	// the original is untouched
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.RAG.EncryptionKey)
	assert.Contains(t, cfg.Database.DSN, "s3cret")

	cfg.Database.DSN = "host=db password=s3cret"
	assert.Equal(t, "xxxxx", cfg.Redacted().Database.DSN)
}

func TestDefault_SessionBounds(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1024, cfg.Server.SessionLimit)
	assert.Equal(t, 24*time.Hour, cfg.Server.SessionTTL)
}
