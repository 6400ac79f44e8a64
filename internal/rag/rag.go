package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"geotech-rag/internal/config"
	"geotech-rag/internal/embedding"
	"geotech-rag/internal/llmservice"
	"geotech-rag/internal/models"
)

type Answer struct {
	Text    string               `json:"answer"`
	Sources []models.ScoredChunk `json:"sources"`
	State   State                `json:"state"`
}

// Pipeline answers questions for sessions from the shared index snapshot.
type Pipeline struct {
	cfg     *config.Config
	builder *Builder

	NewProvider func(key string) (embeddings.Embedder, error)
	NewChat     func(key string) (llms.Model, error)
	Getenv      func(string) string
}

func NewPipeline(cfg *config.Config, builder *Builder) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		builder: builder,
		NewProvider: func(key string) (embeddings.Embedder, error) {
			return embedding.New(cfg.EmbedLLM, key)
		},
		NewChat: func(key string) (llms.Model, error) {
			return llmservice.New(cfg.ChatLLM, key)
		},
		Getenv: os.Getenv,
	}
}

func (p *Pipeline) Builder() *Builder {
	return p.builder
}

// KeyAvailable reports whether a credential can be resolved for s.
func (p *Pipeline) KeyAvailable(s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return p.resolveKey(s) != ""
}

// EnsureReady brings s to StateReady if it can. It is safe to call repeatedly;
// a ready session is left alone and any other state is re-evaluated.
func (p *Pipeline) EnsureReady(ctx context.Context, s *Session) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return p.ensureReady(ctx, s)
}

func (p *Pipeline) ensureReady(ctx context.Context, s *Session) (State, error) {
	if s.state == StateReady {
		return s.state, nil
	}
	key := p.resolveKey(s)
	if key == "" && p.cfg.RequiresKey() {
		s.state = StateMissingKey
		s.lastErr = nil
		return s.state, nil
	}

	fail := func(err error) (State, error) {
		s.reset()
		s.lastErr = err
		log.Error().Err(err).Str("session", s.ID).Msg("Failed to initialize pipeline")
		return s.state, err
	}
	provider, err := p.NewProvider(key)
	if err != nil {
		return fail(fmt.Errorf("failed to create embedding provider: %w", err))
	}
	chat, err := p.NewChat(key)
	if err != nil {
		return fail(fmt.Errorf("failed to create chat model: %w", err))
	}

	snap, err := p.builder.BuildOrLoad(ctx, provider)
	if errors.Is(err, ErrNoDocuments) {
		s.reset()
		s.state = StateNoDocuments
		return s.state, nil
	}
	if err != nil {
		return fail(err)
	}

	s.index = snap.Index
	s.meta = snap.Metadata
	s.provider = provider
	s.chat = chat
	s.state = StateReady
	s.lastErr = nil
	log.Info().Str("session", s.ID).Bool("loaded", snap.Loaded).Msg("Pipeline ready")
	return s.state, nil
}

// Ask answers question for s. The question and the answer shown are always
// added to the transcript; only a successful model answer enters memory.
// Retrieval and model failures are returned as an inline answer, not an error.
func (p *Pipeline) Ask(ctx context.Context, s *Session, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addMessage(models.RoleUser, question, nil)

	state, _ := p.ensureReady(ctx, s)
	if state != StateReady {
		text := guidance(state, s.lastErr)
		s.addMessage(models.RoleAssistant, text, nil)
		return Answer{Text: text, State: state}, nil
	}

	text, sources, err := p.answer(ctx, s, question)
	if err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("Failed to answer question")
		text = fmt.Sprintf(models.ErrorAnswerFormat, err)
		sources = nil
	} else if err := s.memory.Append(ctx, question, text); err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("Failed to update memory")
	}
	s.addMessage(models.RoleAssistant, text, sources)
	return Answer{Text: text, Sources: sources, State: state}, nil
}

func (p *Pipeline) answer(ctx context.Context, s *Session, question string) (string, []models.ScoredChunk, error) {
	vec, err := s.provider.EmbedQuery(ctx, question)
	if err != nil {
		return "", nil, fmt.Errorf("failed to embed question: %w", err)
	}
	hits, err := s.index.Search(ctx, vec, p.cfg.RAG.TopK)
	if err != nil {
		return "", nil, err
	}
	history, err := s.memory.Messages(ctx)
	if err != nil {
		return "", nil, err
	}
	log.Debug().Int("hits", len(hits)).Int("history", len(history)).Msg("Calling chat model")

	raw, err := llmservice.GenerateContent(ctx, s.chat, buildMessages(hits, history, question))
	if err != nil {
		return "", nil, err
	}
	text := TidyAnswer(raw)
	if text == "" {
		text = models.EmptyAnswerMessage
	}
	return text, hits, nil
}

// Rebuild discards the persisted index and builds a fresh one for s.
func (p *Pipeline) Rebuild(ctx context.Context, s *Session) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.resolveKey(s) == "" && p.cfg.RequiresKey() {
		return s.state, ErrMissingKey
	}
	if err := p.builder.Discard(ctx); err != nil {
		return s.state, err
	}
	s.reset()
	return p.ensureReady(ctx, s)
}

// ClearHistory empties both the memory and the transcript of s.
func (p *Pipeline) ClearHistory(ctx context.Context, s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
	return s.memory.Clear(ctx)
}

func (p *Pipeline) resolveKey(s *Session) string {
	if s.keyOverride != "" {
		return s.keyOverride
	}
	return strings.TrimSpace(p.Getenv(p.cfg.APIKeyEnv))
}

func guidance(state State, lastErr error) string {
	switch {
	case errors.Is(lastErr, ErrIndexIncompatible):
		return models.IncompatibleIndexMessage
	case state == StateMissingKey:
		return models.MissingKeyMessage
	case state == StateNoDocuments:
		return models.NoDocumentsMessage
	default:
		return models.NotReadyMessage
	}
}
