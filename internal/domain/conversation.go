package domain

import "strings"

// Role tags the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single immutable conversation message. Histories are append-only.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn returns a turn authored by the patient.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn returns a turn authored by the assistant.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// Transcript joins every turn's content with single spaces, in order,
// regardless of author.
func Transcript(history []Turn) string {
	parts := make([]string, 0, len(history))
	for _, t := range history {
		parts = append(parts, t.Content)
	}
	return strings.Join(parts, " ")
}

// CloneHistory returns a copy of history that does not share backing storage.
func CloneHistory(history []Turn) []Turn {
	out := make([]Turn, len(history))
	copy(out, history)
	return out
}
