package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a conversation.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

func NewTurn(role Role, text string) Turn {
	return Turn{Role: role, Text: text, At: time.Now()}
}

// Conversation is the read-only view handed out by the registry.
type Conversation struct {
	SessionID SessionID `json:"session_id"`
	Turns     []Turn    `json:"turns"`
}
