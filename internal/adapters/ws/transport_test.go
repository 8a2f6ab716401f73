package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/ChatStream/internal/core"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

type sink struct {
	mu    sync.Mutex
	parts []string
	errs  chan error
}

func (s *sink) handlers() core.Handlers {
	return core.Handlers{
		OnMessage: func(f core.Fragment) {
			s.mu.Lock()
			s.parts = append(s.parts, f)
			s.mu.Unlock()
		},
		OnError: func(err error) { s.errs <- err },
	}
}

func (s *sink) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.parts...)
}

func TestToWebSocketURL(t *testing.T) {
	assert.Equal(t, "ws://h/p?q=1", ToWebSocketURL("http://h/p?q=1"))
	assert.Equal(t, "wss://h/p", ToWebSocketURL("https://h/p"))
	assert.Equal(t, "ws://h/p", ToWebSocketURL("ws://h/p"))
}

func TestTransport_TextFramesThenNormalClose(t *testing.T) {
	srv := mockWSServer(t, func(conn *websocket.Conn) {
		for _, m := range []string{"Hel", "lo"} {
			assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(m)))
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x01})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		time.Sleep(50 * time.Millisecond)
	})

	s := &sink{errs: make(chan error, 2)}
	conn := NewTransport(nil).Open(context.Background(), srv.URL, s.handlers())
	defer conn.Close()

	select {
	case err := <-s.errs:
		assert.ErrorIs(t, err, ErrStreamEnded)
		assert.ErrorIs(t, err, core.ErrStreamEnded)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
	assert.Equal(t, []string{"Hel", "lo"}, s.got())
}

func TestTransport_DialError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := &sink{errs: make(chan error, 1)}
	NewTransport(nil).Open(context.Background(), srv.URL, s.handlers())

	select {
	case err := <-s.errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestTransport_CloseIsSilent(t *testing.T) {
	srv := mockWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("first"))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	s := &sink{errs: make(chan error, 1)}
	conn := NewTransport(nil).Open(context.Background(), srv.URL, s.handlers())

	require.Eventually(t, func() bool { return len(s.got()) == 1 }, 2*time.Second, 10*time.Millisecond)
	conn.Close()

	select {
	case err := <-s.errs:
		t.Fatalf("unexpected error after close: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}
