package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single entry of the conversation memory
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Message is a transcript entry shown to the user. Unlike Turn it also
// carries guidance and error answers that never reach the model.
type Message struct {
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	Sources   []ScoredChunk `json:"sources,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
