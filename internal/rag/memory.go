package rag

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/memory"

	"geotech-rag/internal/models"
)

// Memory is the append-only log of answered turns that conditions follow-up
// questions. Only successful (question, answer) pairs are recorded.
type Memory struct {
	history *memory.ChatMessageHistory
}

func NewMemory() *Memory {
	return &Memory{history: memory.NewChatMessageHistory()}
}

func (m *Memory) Append(ctx context.Context, question, answer string) error {
	if err := m.history.AddUserMessage(ctx, question); err != nil {
		return fmt.Errorf("failed to record question: %w", err)
	}
	if err := m.history.AddAIMessage(ctx, answer); err != nil {
		return fmt.Errorf("failed to record answer: %w", err)
	}
	return nil
}

func (m *Memory) Turns(ctx context.Context) ([]models.Turn, error) {
	msgs, err := m.history.Messages(ctx)
	if err != nil {
		return nil, err
	}
	turns := make([]models.Turn, 0, len(msgs))
	for _, msg := range msgs {
		role := models.RoleUser
		if msg.GetType() == llms.ChatMessageTypeAI {
			role = models.RoleAssistant
		}
		turns = append(turns, models.Turn{Role: role, Text: msg.GetContent()})
	}
	return turns, nil
}

// Messages returns the log as chat messages in the order they were added.
func (m *Memory) Messages(ctx context.Context) ([]llms.MessageContent, error) {
	msgs, err := m.history.Messages(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, llms.TextParts(msg.GetType(), msg.GetContent()))
	}
	return out, nil
}

func (m *Memory) Clear(ctx context.Context) error {
	return m.history.Clear(ctx)
}
