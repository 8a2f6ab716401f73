// Package ws carries chat streams over WebSocket text frames.
package ws

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/ChatStream/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrStreamEnded = fmt.Errorf("ws: %w", core.ErrStreamEnded)

// Transport opens one WebSocket per stream; every text frame is a fragment.
type Transport struct {
	dialer *websocket.Dialer
}

func NewTransport(dialer *websocket.Dialer) *Transport {
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	return &Transport{dialer: dialer}
}

// ToWebSocketURL rewrites http(s) targets to ws(s).
func ToWebSocketURL(target string) string {
	switch {
	case strings.HasPrefix(target, "https://"):
		return "wss://" + strings.TrimPrefix(target, "https://")
	case strings.HasPrefix(target, "http://"):
		return "ws://" + strings.TrimPrefix(target, "http://")
	default:
		return target
	}
}

func (t *Transport) Open(ctx context.Context, target string, h core.Handlers) core.StreamConnection {
	ctx, cancel := context.WithCancel(ctx)
	c := &wsConn{target: ToWebSocketURL(target), cancel: cancel}
	go c.run(ctx, t.dialer, h)
	return c
}

type wsConn struct {
	target string
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
	}
	log.Debug().Str("module", "ws").Str("target", c.target).Msg("closed")
}

func (c *wsConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *wsConn) run(ctx context.Context, dialer *websocket.Dialer, h core.Handlers) {
	conn, _, err := dialer.DialContext(ctx, c.target, nil)
	if err != nil {
		c.report(h, err)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	log.Debug().Str("module", "ws").Str("target", c.target).Msg("stream established")
	c.readLoop(conn, h)
}

func (c *wsConn) readLoop(conn *websocket.Conn, h core.Handlers) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = ErrStreamEnded
			}
			c.report(h, err)
			return
		}
		if c.isClosed() {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if h.OnMessage != nil {
			h.OnMessage(string(data))
		}
	}
}

func (c *wsConn) report(h core.Handlers, err error) {
	if c.isClosed() {
		return
	}
	if h.OnError != nil {
		h.OnError(err)
	}
}
