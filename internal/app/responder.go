package app

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dkeye/ChatStream/internal/domain"
)

// Responder produces the assistant reply as a stream of fragments.
// The channel is closed when the reply is complete or ctx is done.
type Responder interface {
	Reply(ctx context.Context, history []domain.Turn, prompt string) (<-chan string, error)
}

// EchoResponder answers with the prompt, one word per fragment.
// Each word keeps its trailing space so fragments concatenate back.
type EchoResponder struct {
	delay atomic.Int64
}

func NewEchoResponder(delay time.Duration) *EchoResponder {
	r := &EchoResponder{}
	r.SetDelay(delay)
	return r
}

// SetDelay changes the pause between fragments; safe while streaming.
func (r *EchoResponder) SetDelay(d time.Duration) { r.delay.Store(int64(d)) }

func (r *EchoResponder) Delay() time.Duration { return time.Duration(r.delay.Load()) }

func (r *EchoResponder) Reply(ctx context.Context, history []domain.Turn, prompt string) (<-chan string, error) {
	reply := "you said: " + prompt
	if n := countUserTurns(history); n > 1 {
		reply = "(turn " + strconv.Itoa(n) + ") " + reply
	}
	parts := SplitWords(reply)

	out := make(chan string)
	go func() {
		defer close(out)
		for i, p := range parts {
			if i > 0 {
				if d := r.Delay(); d > 0 {
					select {
					case <-ctx.Done():
						return
					case <-time.After(d):
					}
				}
			}
			select {
			case <-ctx.Done():
				return
			case out <- p:
			}
		}
	}()
	return out, nil
}

// SplitWords splits s after every run of spaces, so strings.Join(parts, "") == s.
func SplitWords(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' && (i+1 == len(s) || s[i+1] != ' ') {
			parts = append(parts, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}

func countUserTurns(history []domain.Turn) int {
	n := 0
	for _, t := range history {
		if t.Role == domain.RoleUser {
			n++
		}
	}
	return n
}
