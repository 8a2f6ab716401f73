package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dkeye/ChatStream/internal/adapters/sse"
	"github.com/dkeye/ChatStream/internal/core"
	"github.com/rs/zerolog/log"
)

// Manager keeps at most one push connection open and forwards its fragments.
type Manager struct {
	transport  core.Transport
	baseURL    string
	endpoint   string
	ctx        context.Context
	onFragment func(core.Fragment)

	// connectMu orders supersede-then-open across concurrent Connect calls.
	connectMu sync.Mutex

	mu     sync.Mutex
	state  State
	active *liveConn
}

// liveConn is one opened connection. Its handlers check closed before
// touching the manager so a superseded connection can never leak into it.
type liveConn struct {
	target string
	handle core.StreamConnection
	cancel context.CancelFunc
	closed atomic.Bool
}

func (c *liveConn) close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.cancel()
	if c.handle != nil {
		c.handle.Close()
	}
}

// NewManager creates a manager in the Closed state. onFragment may be nil.
func NewManager(onFragment func(core.Fragment), opts ...Option) *Manager {
	m := &Manager{
		baseURL:    DefaultBaseURL,
		endpoint:   DefaultEndpoint,
		ctx:        context.Background(),
		onFragment: onFragment,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.transport == nil {
		m.transport = sse.NewTransport(nil)
	}
	return m
}

// Connect closes the current connection, if any, and opens a new one for
// the given session and prompt. It never blocks on the network; failures
// are logged and close the connection.
func (m *Manager) Connect(sessionID, prompt string) {
	target := BuildTarget(m.baseURL, m.endpoint, sessionID, prompt)

	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	if old := m.detach(); old != nil {
		log.Debug().Str("module", "stream").Str("target", old.target).Msg("superseding connection")
		old.close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithCancel(m.ctx)
	c := &liveConn{target: target, cancel: cancel}
	c.handle = m.transport.Open(ctx, target, core.Handlers{
		OnMessage: func(f core.Fragment) { m.deliver(c, f) },
		OnError:   func(err error) { m.fail(c, err) },
	})
	m.active = c
	m.state = Open
	log.Info().Str("module", "stream").Str("session", sessionID).Str("target", target).Msg("connection opened")
}

// Disconnect closes the current connection. No-op when already closed.
func (m *Manager) Disconnect() {
	c := m.detach()
	if c == nil {
		return
	}
	log.Info().Str("module", "stream").Str("target", c.target).Msg("disconnect")
	c.close()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Target returns the target of the open connection, or "" when closed.
func (m *Manager) Target() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.target
}

// detach marks the manager closed and hands back the connection that was
// open, if any. The caller closes it outside the lock.
func (m *Manager) detach() *liveConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.active
	m.active = nil
	m.state = Closed
	return c
}

func (m *Manager) deliver(c *liveConn, f core.Fragment) {
	if c.closed.Load() || m.onFragment == nil {
		return
	}
	m.onFragment(f)
}

func (m *Manager) fail(c *liveConn, err error) {
	if c.closed.Load() {
		return
	}
	m.mu.Lock()
	current := m.active == c
	if current {
		m.active = nil
		m.state = Closed
	}
	m.mu.Unlock()

	if current {
		if errors.Is(err, core.ErrStreamEnded) {
			log.Info().Str("module", "stream").Str("target", c.target).Msg("stream ended")
		} else {
			log.Error().Err(err).Str("module", "stream").Str("target", c.target).Msg("stream connection error")
		}
	}
	c.close()
}
