package http

import (
	"sync"
	"time"

	"github.com/dkeye/ChatStream/internal/domain"
)

// SessionRateLimiter is a sliding-window limiter keyed by session id.
// A limit of zero disables it.
type SessionRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.SessionID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time

	lastSweep time.Time
}

func NewSessionRateLimiter(limit int, interval time.Duration) *SessionRateLimiter {
	return &SessionRateLimiter{
		history:  make(map[domain.SessionID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// SetLimit applies new limits. History is kept unless the limiter is
// being disabled.
func (rl *SessionRateLimiter) SetLimit(limit int, interval time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limit = limit
	rl.interval = interval
	if limit <= 0 {
		clear(rl.history)
	}
}

func (rl *SessionRateLimiter) Allow(sid domain.SessionID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.limit <= 0 {
		return true
	}

	now := rl.now()
	windowStart := now.Add(-rl.interval)
	if now.Sub(rl.lastSweep) >= rl.interval {
		rl.sweepLocked(windowStart)
		rl.lastSweep = now
	}

	attempts := rl.history[sid]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[sid] = fresh
		return false
	}

	rl.history[sid] = append(fresh, now)
	return true
}

// sweepLocked drops sessions with no attempt inside the window.
func (rl *SessionRateLimiter) sweepLocked(windowStart time.Time) {
	for sid, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, sid)
		}
	}
}

// Len reports how many sessions are currently tracked.
func (rl *SessionRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.history)
}
