package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendDir      = "dir"
	BackendPostgres = "postgres"
)

type Config struct {
	PDFDir     string         `yaml:"pdf_dir"`
	StorageDir string         `yaml:"storage_dir"`
	PhotoDirs  []PhotoDir     `yaml:"photo_dirs"`
	APIKeyEnv  string         `yaml:"api_key_env"`
	Log        LogConfig      `yaml:"log"`
	EmbedLLM   LLMConfig      `yaml:"embed_llm"`
	ChatLLM    LLMConfig      `yaml:"chat_llm"`
	RAG        RAGConfig      `yaml:"rag"`
	Index      IndexConfig    `yaml:"index"`
	Database   DatabaseConfig `yaml:"database"`
	Server     ServerConfig   `yaml:"server"`
}

type PhotoDir struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

type LLMConfig struct {
	Provider   string        `yaml:"provider"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	BatchSize  int           `yaml:"batch_size"`
	CacheSize  int           `yaml:"cache_size"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
	Dimensions int           `yaml:"dimensions"`
}

type RAGConfig struct {
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	TopK          int    `yaml:"top_k"`
	EncryptionKey string `yaml:"encryption_key"`
}

type IndexConfig struct {
	Backend string `yaml:"backend"`
	// StaleCheck is a cron spec for comparing the PDF folder with the index.
	// Empty disables the check.
	StaleCheck string `yaml:"stale_check"`
}

type DatabaseConfig struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// SessionLimit caps the chat sessions kept in memory; the least recently
	// used one is dropped first. Sessions idle for SessionTTL expire.
	SessionLimit int           `yaml:"session_limit"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
}

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
	defaultTopK         = 3

	defaultSessionLimit = 1024
	defaultSessionTTL   = 24 * time.Hour

	redacted = "xxxxx"
)

// LoadConfig reads the yaml file at path. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.PDFDir == "" {
		cfg.PDFDir = "."
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "vectorstore"
	}
	if cfg.PhotoDirs == nil {
		cfg.PhotoDirs = []PhotoDir{
			{Name: "Shallow Foundation", Path: "Shallow_foundation"},
			{Name: "Deep Foundation", Path: "Deep_foundation"},
		}
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = ProviderOpenAI
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = "text-embedding-3-small"
	}
	if cfg.EmbedLLM.BatchSize == 0 {
		cfg.EmbedLLM.BatchSize = 512
	}
	if cfg.ChatLLM.Provider == "" {
		cfg.ChatLLM.Provider = ProviderOpenAI
	}
	if cfg.ChatLLM.Model == "" {
		cfg.ChatLLM.Model = "gpt-4o-mini"
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = defaultChunkSize
		if cfg.RAG.ChunkOverlap == 0 {
			cfg.RAG.ChunkOverlap = defaultChunkOverlap
		}
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = BackendDir
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8501"
	}
	if cfg.Server.SessionLimit == 0 {
		cfg.Server.SessionLimit = defaultSessionLimit
	}
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = defaultSessionTTL
	}
}

func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive")
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size)")
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive")
	}
	if c.EmbedLLM.Dimensions < 0 {
		return fmt.Errorf("embed_llm.dimensions must not be negative")
	}
	if c.Server.SessionLimit < 0 || c.Server.SessionTTL < 0 {
		return fmt.Errorf("server.session_limit and server.session_ttl must not be negative")
	}
	if k := len(c.RAG.EncryptionKey); k != 0 && k != 32 {
		return fmt.Errorf("rag.encryption_key must be 32 bytes, got %d", k)
	}
	for _, p := range []string{c.EmbedLLM.Provider, c.ChatLLM.Provider} {
		if p != ProviderOpenAI && p != ProviderOllama {
			return fmt.Errorf("unsupported llm provider: %s", p)
		}
	}
	switch c.Index.Backend {
	case BackendDir:
	case BackendPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres index backend")
		}
	default:
		return fmt.Errorf("unsupported index backend: %s", c.Index.Backend)
	}
	return nil
}

// RequiresKey reports whether any configured provider needs an API key.
func (c *Config) RequiresKey() bool {
	return c.EmbedLLM.Provider == ProviderOpenAI || c.ChatLLM.Provider == ProviderOpenAI
}

// Redacted returns a copy of c that is safe to log: the encryption key and
// the database password are masked.
func (c *Config) Redacted() Config {
	out := *c
	if out.RAG.EncryptionKey != "" {
		out.RAG.EncryptionKey = redacted
	}
	if out.Database.DSN != "" {
		u, err := url.Parse(out.Database.DSN)
		if err != nil || u.Scheme == "" {
			out.Database.DSN = redacted
		} else {
			out.Database.DSN = u.Redacted()
		}
	}
	return out
}
