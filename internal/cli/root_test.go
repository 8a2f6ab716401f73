package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	router "github.com/dkeye/ChatStream/internal/adapters/http"
	"github.com/dkeye/ChatStream/internal/app"
	"github.com/dkeye/ChatStream/internal/config"
	"github.com/dkeye/ChatStream/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		Mode:       "test",
		Port:       8080,
		Secret:     "test",
		StreamPath: stream.DefaultEndpoint,
		WSPath:     "/message/chat/ws/history",
	}
	chat := app.NewChatService(app.NewRegistry(), app.NewEchoResponder(time.Millisecond))
	srv := httptest.NewServer(router.SetupRouter(context.Background(), cfg, chat, router.NewSessionRateLimiter(0, 0)))
	t.Cleanup(srv.Close)

	cfg.Client = config.Client{BaseURL: srv.URL, Transport: "sse", SessionID: "cli"}
	return srv, cfg
}

func withTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRun_OneShot(t *testing.T) {
	_, cfg := newServer(t)
	var out bytes.Buffer

	err := Run(withTimeout(t), cfg, "hello world", strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Equal(t, "you said: hello world\n", out.String())
}

func TestRun_OneShotOverWebSocket(t *testing.T) {
	_, cfg := newServer(t)
	cfg.Client.Transport = "ws"
	var out bytes.Buffer

	err := Run(withTimeout(t), cfg, "hi", strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Equal(t, "you said: hi\n", out.String())
}

func TestRun_Interactive(t *testing.T) {
	_, cfg := newServer(t)
	var out bytes.Buffer

	err := Run(withTimeout(t), cfg, "", strings.NewReader("\nfirst\nsecond\n"), &out)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out.String(), "you said: second\n"), out.String())
}

func TestRun_Quit(t *testing.T) {
	_, cfg := newServer(t)
	var out bytes.Buffer

	err := Run(withTimeout(t), cfg, "", strings.NewReader(quitCommand+"\nnever sent\n"), &out)
	require.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestRun_ContextCancelled(t *testing.T) {
	cfg := &config.Config{
		StreamPath: stream.DefaultEndpoint,
		Client:     config.Client{BaseURL: "http://127.0.0.1:1", Transport: "sse", SessionID: "x"},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := Run(ctx, cfg, "hi", strings.NewReader(""), &out)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestRootCommand_Flags(t *testing.T) {
	cmd := NewRootCommand(strings.NewReader(""), &bytes.Buffer{})
	for _, name := range []string{"config", "base-url", "session", "transport", "log-level"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestRootCommand_Executes(t *testing.T) {
	srv, _ := newServer(t)
	var out bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(""), &out)
	cmd.SetArgs([]string{"--config", t.TempDir() + "/none.yaml", "--base-url", srv.URL, "--session", "abc", "ping"})

	require.NoError(t, cmd.ExecuteContext(withTimeout(t)))
	assert.Equal(t, "you said: ping\n", out.String())
}
