package rag

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"geotech-rag/internal/chromemdb"
	"geotech-rag/internal/models"
)

// Session is one user's conversation: credential override, memory, visible
// transcript and the pipeline resources once ready. All pipeline calls on a
// session hold its lock, so a session answers one question at a time.
type Session struct {
	mu sync.Mutex

	ID          string
	keyOverride string
	memory      *Memory
	transcript  []models.Message

	state    State
	index    *chromemdb.Index
	meta     *models.IndexMetadata
	provider embeddings.Embedder
	chat     llms.Model
	lastErr  error
}

func NewSession(id string) *Session {
	return &Session{ID: id, memory: NewMemory()}
}

// SetKeyOverride stores a credential that takes precedence over the
// environment. A changed key drops the current provider so the next call
// re-evaluates readiness with it.
func (s *Session) SetKeyOverride(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = strings.TrimSpace(key)
	if key == s.keyOverride {
		return
	}
	s.keyOverride = key
	s.reset()
}

func (s *Session) HasKeyOverride() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyOverride != ""
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// IndexMetadata describes the index the session answers from, nil until ready.
func (s *Session) IndexMetadata() *models.IndexMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// Transcript returns a copy of everything shown to the user, guidance and
// error answers included.
func (s *Session) Transcript() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// History returns the turns held in conversation memory.
func (s *Session) History(ctx context.Context) ([]models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.Turns(ctx)
}

func (s *Session) addMessage(role models.Role, content string, sources []models.ScoredChunk) {
	s.transcript = append(s.transcript, models.Message{
		Role:      role,
		Content:   content,
		Sources:   sources,
		CreatedAt: time.Now(),
	})
}

func (s *Session) reset() {
	s.state = StateUninitialized
	s.index = nil
	s.meta = nil
	s.provider = nil
	s.chat = nil
	s.lastErr = nil
}
