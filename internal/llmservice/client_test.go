package llmservice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"geotech-rag/internal/config"
	"geotech-rag/internal/testutil"
)

func TestNew(t *testing.T) {
	llm, err := New(config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini"}, "sk-test")
	require.NoError(t, err)
	assert.NotNil(t, llm)

	llm, err = New(config.LLMConfig{Provider: config.ProviderOllama, Model: "llama3", BaseURL: "http://localhost:11434"}, "")
	require.NoError(t, err)
	assert.NotNil(t, llm)

	_, err = New(config.LLMConfig{Provider: "claude"}, "")
	assert.Error(t, err)
}

func TestGenerateContent_TemperatureZero(t *testing.T) {
	fake := &testutil.FakeLLM{Responses: []string{"Use a raft."}}
	msgs := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, "which foundation?")}

	got, err := GenerateContent(context.Background(), fake, msgs)
	require.NoError(t, err)
	assert.Equal(t, "Use a raft.", got)
	require.Len(t, fake.Options, 1)
	assert.Equal(t, 0.0, fake.Options[0].Temperature)
}

func TestGenerateContent_Error(t *testing.T) {
	fake := &testutil.FakeLLM{Err: errors.New("rate limited")}
	_, err := GenerateContent(context.Background(), fake, nil)
	assert.EqualError(t, err, "rate limited")
}
