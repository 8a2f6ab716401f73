// Package cli implements the chatstream-client command.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/ChatStream/internal/adapters/ws"
	"github.com/dkeye/ChatStream/internal/config"
	"github.com/dkeye/ChatStream/internal/domain"
	"github.com/dkeye/ChatStream/internal/logging"
	"github.com/dkeye/ChatStream/internal/stream"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	quitCommand  = ":quit"
	pollInterval = 20 * time.Millisecond
)

func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "chatstream-client [prompt]",
		Short: "Stream chat replies from a ChatStream server",
		Long: "Sends a prompt and prints the reply as it streams in. Without a prompt\n" +
			"argument every line read from stdin starts a new stream, replacing the\n" +
			"previous one. Type " + quitCommand + " to stop.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.New(cfgPath)
			if err := config.Read(v); err != nil {
				return err
			}
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Decode(v)
			if err != nil {
				return err
			}
			logging.Setup(cfg.Log.Level, true)

			prompt := ""
			if len(args) == 1 {
				prompt = args[0]
			}
			return Run(cmd.Context(), cfg, prompt, in, out)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgPath, "config", "", "config file (default config/config.<CONFIG_ENV>.yaml)")
	flags.String("base-url", "", "server base URL")
	flags.String("session", "", "session id (default: random)")
	flags.String("transport", "", "stream transport: sse or ws")
	flags.String("log-level", "", "log level")
	return cmd
}

// syncWriter serializes fragment output from the transport goroutine.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) write(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, p)
}

// NewManager builds a stream manager for the configured transport.
func NewManager(ctx context.Context, cfg *config.Config, onFragment func(string)) *stream.Manager {
	opts := []stream.Option{
		stream.WithContext(ctx),
		stream.WithBaseURL(cfg.Client.BaseURL),
		stream.WithEndpoint(cfg.StreamPath),
	}
	if cfg.Client.Transport == "ws" {
		opts = append(opts,
			stream.WithTransport(ws.NewTransport(nil)),
			stream.WithEndpoint(cfg.WSPath),
		)
	}
	return stream.NewManager(onFragment, opts...)
}

// Run streams one prompt, or every stdin line when prompt is empty.
func Run(ctx context.Context, cfg *config.Config, prompt string, in io.Reader, out io.Writer) error {
	sid := cfg.Client.SessionID
	if sid == "" {
		sid = string(domain.NewSessionID())
	}
	log.Debug().Str("module", "cli").Str("sid", sid).Str("transport", cfg.Client.Transport).Msg("starting")

	w := &syncWriter{w: out}
	m := NewManager(ctx, cfg, w.write)
	defer m.Disconnect()

	if prompt != "" {
		m.Connect(sid, prompt)
		err := waitClosed(ctx, m)
		w.write("\n")
		return err
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == quitCommand:
			m.Disconnect()
			return nil
		}
		m.Connect(sid, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read prompts: %w", err)
	}
	err := waitClosed(ctx, m)
	w.write("\n")
	return err
}

// waitClosed polls because the manager exposes no completion callback.
func waitClosed(ctx context.Context, m *stream.Manager) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for m.State() != stream.Closed {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
