package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/dkeye/ChatStream/internal/domain"
	"github.com/rs/zerolog/log"
)

// ChatService binds conversations to a responder and streams replies.
type ChatService struct {
	Registry  *Registry
	Responder Responder
}

func NewChatService(reg *Registry, resp Responder) *ChatService {
	return &ChatService{Registry: reg, Responder: resp}
}

// Stream records the prompt, emits the reply fragment by fragment and records
// whatever part of the reply was emitted. It stops at the first emit error.
func (s *ChatService) Stream(ctx context.Context, sid domain.SessionID, prompt string, emit func(string) error) error {
	if err := domain.ValidatePrompt(prompt); err != nil {
		return err
	}

	s.Registry.Append(sid, domain.NewTurn(domain.RoleUser, prompt))

	parts, err := s.Responder.Reply(ctx, s.Registry.History(sid), prompt)
	if err != nil {
		return fmt.Errorf("reply: %w", err)
	}

	var reply strings.Builder
	defer func() {
		if reply.Len() > 0 {
			s.Registry.Append(sid, domain.NewTurn(domain.RoleAssistant, reply.String()))
		}
	}()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.chat").Str("sid", string(sid)).Int("sent", sent).Msg("stream cancelled")
			return ctx.Err()
		case p, ok := <-parts:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				log.Debug().Str("module", "app.chat").Str("sid", string(sid)).Int("sent", sent).Msg("stream complete")
				return nil
			}
			if err := emit(p); err != nil {
				log.Warn().Err(err).Str("module", "app.chat").Str("sid", string(sid)).Msg("emit failed")
				return fmt.Errorf("emit: %w", err)
			}
			reply.WriteString(p)
			sent++
		}
	}
}
