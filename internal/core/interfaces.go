package core

import (
	"context"
	"errors"
)

// ErrStreamEnded is reported through OnError when the server finishes a
// stream normally. Transports wrap it with their own prefix.
var ErrStreamEnded = errors.New("stream ended")

// Fragment is one unit of text pushed by the server. Opaque to the client.
type Fragment = string

// Handlers are registered on a connection when it is opened.
// A transport invokes them sequentially from its own goroutine.
type Handlers struct {
	OnMessage func(Fragment)
	OnError   func(error)
}

// StreamConnection abstracts a live one-directional push stream.
// Owned by whoever opened it; Close is idempotent.
type StreamConnection interface {
	Close()
}

// Transport opens push streams. Open must not block on network I/O:
// dial and read failures are reported through Handlers.OnError.
type Transport interface {
	Open(ctx context.Context, target string, h Handlers) StreamConnection
}
