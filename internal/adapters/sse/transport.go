package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync/atomic"

	"github.com/dkeye/ChatStream/internal/core"
	"github.com/rs/zerolog/log"
)

const ContentType = "text/event-stream"

var (
	ErrBadStatus      = errors.New("sse: unexpected status")
	ErrBadContentType = errors.New("sse: unexpected content type")
	ErrStreamEnded    = fmt.Errorf("sse: %w", core.ErrStreamEnded)
)

// Transport opens server-sent event streams over plain HTTP GET.
type Transport struct {
	client *http.Client
}

// NewTransport uses client for every stream; nil means a client without a
// timeout, since streams are long lived.
func NewTransport(client *http.Client) *Transport {
	if client == nil {
		client = &http.Client{}
	}
	return &Transport{client: client}
}

func (t *Transport) Open(ctx context.Context, target string, h core.Handlers) core.StreamConnection {
	ctx, cancel := context.WithCancel(ctx)
	c := &sseConn{target: target, cancel: cancel}
	go c.run(ctx, t.client, h)
	return c
}

type sseConn struct {
	target string
	cancel context.CancelFunc
	closed atomic.Bool
}

func (c *sseConn) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.cancel()
	log.Debug().Str("module", "sse").Str("target", c.target).Msg("closed")
}

func (c *sseConn) run(ctx context.Context, client *http.Client, h core.Handlers) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.target, nil)
	if err != nil {
		c.report(h, fmt.Errorf("sse: build request: %w", err))
		return
	}
	req.Header.Set("Accept", ContentType)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		c.report(h, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.report(h, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode))
		return
	}
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mt != ContentType {
		c.report(h, fmt.Errorf("%w: %q", ErrBadContentType, resp.Header.Get("Content-Type")))
		return
	}

	log.Debug().Str("module", "sse").Str("target", c.target).Msg("stream established")

	p := NewParser(resp.Body)
	for {
		ev, err := p.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrStreamEnded
			}
			c.report(h, err)
			return
		}
		if c.closed.Load() {
			return
		}
		if ev.Type != DefaultEventType {
			log.Debug().Str("module", "sse").Str("event", ev.Type).Msg("ignoring named event")
			continue
		}
		if h.OnMessage != nil {
			h.OnMessage(ev.Data)
		}
	}
}

// report forwards err unless the connection was closed by its owner.
func (c *sseConn) report(h core.Handlers, err error) {
	if c.closed.Load() {
		return
	}
	if h.OnError != nil {
		h.OnError(err)
	}
}
