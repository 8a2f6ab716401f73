package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/ChatStream/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCommand(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("chatstream-client failed")
		os.Exit(1)
	}
}
