// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	MaxSessionIDLen = 64
)

var (
	ErrSessionIDTooLong = errors.New("session id too long")
	ErrSessionIDEmpty   = errors.New("session id empty")
	ErrPromptEmpty      = errors.New("prompt empty")
)

// SessionID correlates a stream to a conversation.
type SessionID string

// NewSessionID is a tiny helper for callers that have no id of their own yet.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// ParseSessionID is used by adapters; the stream manager never validates ids.
func ParseSessionID(raw string) (SessionID, error) {
	if len(raw) == 0 {
		return "", ErrSessionIDEmpty
	}
	if len(raw) > MaxSessionIDLen {
		return "", ErrSessionIDTooLong
	}
	return SessionID(raw), nil
}

func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrPromptEmpty
	}
	return nil
}

var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeNewlines turns CRLF and lone CR into LF. Event streams cannot
// carry a bare CR inside one event, so prompts are stored in this form.
func NormalizeNewlines(s string) string {
	return newlineReplacer.Replace(s)
}
