package rag

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"geotech-rag/internal/models"
)

var (
	boldRe     = regexp.MustCompile(`\*\*[ \t]*([^*\n]*?)[ \t]*\*\*`)
	listItemRe = regexp.MustCompile(`^\s*(?:[-*+]|\d+\.)\s`)
)

// buildMessages lays out the request: retrieved passages in the system
// message, then every remembered turn, then the new question.
func buildMessages(hits []models.ScoredChunk, history []llms.MessageContent, question string) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(history)+2)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, fmt.Sprintf(models.SystemPromptTemplate, formatContext(hits))))
	msgs = append(msgs, history...)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, question))
	return msgs
}

func formatContext(hits []models.ScoredChunk) string {
	passages := make([]string, len(hits))
	for i, h := range hits {
		passages[i] = fmt.Sprintf(models.PassageTemplate, h.Source, h.Page, h.Content)
	}
	return strings.Join(passages, models.ContextSeparator)
}

// TidyAnswer trims the model output, puts a blank line before a list that
// follows a paragraph and removes padding inside bold markers.
func TidyAnswer(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = boldRe.ReplaceAllString(text, "**$1**")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if i > 0 && listItemRe.MatchString(line) {
			prev := lines[i-1]
			if strings.TrimSpace(prev) != "" && !listItemRe.MatchString(prev) {
				out = append(out, "")
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
