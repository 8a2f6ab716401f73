package stream

import (
	"context"

	"github.com/dkeye/ChatStream/internal/core"
)

type Option func(*Manager)

// WithTransport replaces the default SSE transport.
func WithTransport(t core.Transport) Option {
	return func(m *Manager) { m.transport = t }
}

func WithBaseURL(base string) Option {
	return func(m *Manager) { m.baseURL = base }
}

func WithEndpoint(path string) Option {
	return func(m *Manager) { m.endpoint = path }
}

// WithContext sets the parent context of every connection the manager opens.
// Cancelling it tears down the transport but does not change the manager state;
// the transport reports the cancellation as an error only if it was not closed.
func WithContext(ctx context.Context) Option {
	return func(m *Manager) { m.ctx = ctx }
}
