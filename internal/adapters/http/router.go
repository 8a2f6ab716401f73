package http

import (
	"context"
	nethttp "net/http"

	"github.com/dkeye/ChatStream/internal/app"
	"github.com/dkeye/ChatStream/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	clientTokenCookie = "ct"
	clientTokenKey    = "client_token"
	sessionStoreName  = "ChatStreamSessions"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(clientTokenCookie)
		if token == "" {
			token = genClientToken()
			c.SetCookie(clientTokenCookie, token, 3600*24*7, "/", "", false, true)
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, chat *app.ChatService, limiter *SessionRateLimiter) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions(sessionStoreName, store))
	r.Use(ClientTokenMiddleware())

	h := &StreamHandlers{ctx: ctx, chat: chat, limiter: limiter}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
	})

	r.GET(cfg.StreamPath, h.StreamSSE)
	r.GET(cfg.WSPath, h.StreamWS)

	history := r.Group("/message/chat/history")
	history.GET("/:sessionId", h.GetHistory)
	history.DELETE("/:sessionId", h.DeleteHistory)

	log.Info().Str("module", "adapters.http").Str("stream", cfg.StreamPath).Str("ws", cfg.WSPath).Msg("router setup")
	return r
}
