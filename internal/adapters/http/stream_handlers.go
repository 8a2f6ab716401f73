package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"strings"

	"github.com/dkeye/ChatStream/internal/app"
	"github.com/dkeye/ChatStream/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	lastSessionKey = "last_session_id"
	messageEvent   = "message"
	endEvent       = "end"
	endData        = "[DONE]"
)

type StreamHandlers struct {
	ctx     context.Context
	chat    *app.ChatService
	limiter *SessionRateLimiter
}

// resolveSession picks the session id from the query, then the cookie
// session, then the client token, and remembers the choice in the cookie.
func (h *StreamHandlers) resolveSession(c *gin.Context) (domain.SessionID, bool) {
	sess := sessions.Default(c)

	raw := c.Query("sessionId")
	if raw == "" {
		if v, ok := sess.Get(lastSessionKey).(string); ok {
			raw = v
		}
	}
	if raw == "" {
		raw = c.GetString(clientTokenKey)
	}

	sid, err := domain.ParseSessionID(raw)
	if err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}

	sess.Set(lastSessionKey, string(sid))
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
	}
	return sid, true
}

// admit runs the checks shared by both stream endpoints.
func (h *StreamHandlers) admit(c *gin.Context) (domain.SessionID, string, bool) {
	sid, ok := h.resolveSession(c)
	if !ok {
		return "", "", false
	}
	prompt := domain.NormalizeNewlines(c.Query("prompt"))
	if err := domain.ValidatePrompt(prompt); err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
		return "", "", false
	}
	if h.limiter != nil && !h.limiter.Allow(sid) {
		log.Warn().Str("module", "adapters.http").Str("sid", string(sid)).Msg("rate limited")
		c.JSON(nethttp.StatusTooManyRequests, gin.H{"error": "rate limited"})
		return "", "", false
	}
	return sid, prompt, true
}

// streamContext ends when either the request or the server goes away.
func (h *StreamHandlers) streamContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	if h.ctx == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(h.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// sseData prepares a fragment for the event encoder, which writes "data:"
// with no space and splits lines on LF. Every line gets one leading space
// for the client parser to strip, so leading spaces in the fragment survive.
func sseData(p string) string {
	p = domain.NormalizeNewlines(p)
	return " " + strings.ReplaceAll(p, "\n", "\n ")
}

// StreamSSE serves one reply as default-channel events followed by a named
// end event, then ends the response.
func (h *StreamHandlers) StreamSSE(c *gin.Context) {
	sid, prompt, ok := h.admit(c)
	if !ok {
		return
	}

	ctx, cancel := h.streamContext(c)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(nethttp.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	log.Info().Str("module", "adapters.http").Str("sid", string(sid)).Msg("sse stream started")

	err := h.chat.Stream(ctx, sid, prompt, func(p string) error {
		c.Render(-1, sse.Event{Event: messageEvent, Data: sseData(p)})
		c.Writer.Flush()
		return ctx.Err()
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("module", "adapters.http").Str("sid", string(sid)).Msg("sse stream failed")
		}
		return
	}

	c.Render(-1, sse.Event{Event: endEvent, Data: endData})
	c.Writer.Flush()
	log.Info().Str("module", "adapters.http").Str("sid", string(sid)).Msg("sse stream finished")
}

func (h *StreamHandlers) GetHistory(c *gin.Context) {
	sid, err := domain.ParseSessionID(c.Param("sessionId"))
	if err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conv, ok := h.chat.Registry.Snapshot(sid)
	if !ok {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	c.JSON(nethttp.StatusOK, conv)
}

func (h *StreamHandlers) DeleteHistory(c *gin.Context) {
	sid, err := domain.ParseSessionID(c.Param("sessionId"))
	if err != nil {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.chat.Registry.Forget(sid) {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	c.Status(nethttp.StatusNoContent)
}
