package app

import (
	"sync"

	"github.com/dkeye/ChatStream/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry keeps conversation history per session, in memory only.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID][]domain.Turn
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID][]domain.Turn),
	}
}

func (r *Registry) Append(sid domain.SessionID, turn domain.Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; !ok {
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("created new conversation")
	}
	r.sessions[sid] = append(r.sessions[sid], turn)
}

// History returns a copy of the turns recorded for sid.
func (r *Registry) History(sid domain.SessionID) []domain.Turn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	turns := r.sessions[sid]
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out
}

func (r *Registry) Snapshot(sid domain.SessionID) (domain.Conversation, bool) {
	r.mu.RLock()
	_, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return domain.Conversation{}, false
	}
	return domain.Conversation{SessionID: sid, Turns: r.History(sid)}, true
}

func (r *Registry) Forget(sid domain.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; !ok {
		return false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("forgot conversation")
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
