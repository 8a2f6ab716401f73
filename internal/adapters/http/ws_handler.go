package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait     = 5 * time.Second
	closeWait     = time.Second
	sendQueueSize = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *nethttp.Request) bool { return true },
}

// wsStreamConn owns the socket; only writePump writes data frames.
type wsStreamConn struct {
	conn *websocket.Conn
	send chan string
}

// Send blocks until the fragment is queued; fragments are never dropped.
func (c *wsStreamConn) Send(ctx context.Context, f string) error {
	select {
	case c.send <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *wsStreamConn) writePump(ctx context.Context, cancel context.CancelFunc, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("writePump set deadline")
				cancel()
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, endEvent))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("writePump write error")
				cancel()
				return
			}
		}
	}
}

// readPump only watches for the peer going away or answering our close.
func (c *wsStreamConn) readPump(cancel context.CancelFunc, done chan<- struct{}) {
	defer close(done)
	defer cancel()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// StreamWS serves one reply as WebSocket text frames, then a normal close.
func (h *StreamHandlers) StreamWS(c *gin.Context) {
	sid, prompt, ok := h.admit(c)
	if !ok {
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}
	defer ws.Close()

	ctx, cancel := h.streamContext(c)
	defer cancel()

	conn := &wsStreamConn{conn: ws, send: make(chan string, sendQueueSize)}
	writeDone := make(chan struct{})
	readDone := make(chan struct{})
	go conn.writePump(ctx, cancel, writeDone)
	go conn.readPump(cancel, readDone)

	log.Info().Str("module", "adapters.http").Str("sid", string(sid)).Msg("ws stream started")

	err = h.chat.Stream(ctx, sid, prompt, func(p string) error {
		return conn.Send(ctx, p)
	})
	close(conn.send)
	<-writeDone

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("module", "adapters.http").Str("sid", string(sid)).Msg("ws stream failed")
	}

	select {
	case <-readDone:
	case <-time.After(closeWait):
	}
	log.Info().Str("module", "adapters.http").Str("sid", string(sid)).Msg("ws stream finished")
}
