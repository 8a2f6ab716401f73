package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	router "github.com/dkeye/ChatStream/internal/adapters/http"
	"github.com/dkeye/ChatStream/internal/app"
	"github.com/dkeye/ChatStream/internal/config"
	"github.com/dkeye/ChatStream/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize the global logger early so config loading can use it.
	logging.Setup("info", true)

	v := config.New("")
	if err := config.Read(v); err != nil {
		log.Fatal().Err(err).Msg("failed to read config")
	}
	cfg, err := config.Decode(v)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Str("mode", cfg.Mode).Int("port", cfg.Port).Str("stream", cfg.StreamPath).Msg("config")

	responder := app.NewEchoResponder(cfg.FragmentDelay)
	chat := app.NewChatService(app.NewRegistry(), responder)
	limiter := router.NewSessionRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Interval)

	config.Watch(v, func(next *config.Config) {
		logging.SetLevel(next.Log.Level)
		responder.SetDelay(next.FragmentDelay)
		limiter.SetLimit(next.RateLimit.Requests, next.RateLimit.Interval)
	})

	r := router.SetupRouter(ctx, cfg, chat, limiter)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("ChatStream server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
