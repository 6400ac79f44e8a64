package testutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// FakeLLM records every request and replies with Responses in order, falling
// back to "answer N".
type FakeLLM struct {
	Responses []string
	Err       error
	Calls     [][]llms.MessageContent
	Options   []llms.CallOptions
}

func (f *FakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	f.Calls = append(f.Calls, messages)
	f.Options = append(f.Options, opts)
	if f.Err != nil {
		return nil, f.Err
	}
	n := len(f.Calls)
	content := fmt.Sprintf("answer %d", n)
	if n <= len(f.Responses) {
		content = f.Responses[n-1]
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}, nil
}

func (f *FakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

// MessageText joins the text parts of a message
func MessageText(m llms.MessageContent) string {
	var sb strings.Builder
	for _, part := range m.Parts {
		if text, ok := part.(llms.TextContent); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}
