package session

import "time"

// Role tags a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSummary marks a turn that stands in for compacted older history.
	RoleSummary Role = "summary"
)

// Turn is one entry in a session's conversation history.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingClarification records an unanswered question the assistant asked the
// user. While set, the next user message is treated as the answer and is
// merged with the original text before planning resumes.
type PendingClarification struct {
	// OriginalText is the input the interrupted stage was working on. When
	// the interrupted turn was itself a clarification answer, this is the
	// already-combined text, so a second round builds on it.
	OriginalText string `json:"original_text"`
	// Intent carries the planned intent when the question came from the
	// fetch stage rather than the planner. Empty for planner questions.
	Intent string `json:"intent,omitempty"`
}
