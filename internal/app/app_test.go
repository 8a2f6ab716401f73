package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/ChatStream/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitWords(t *testing.T) {
	cases := []string{"", "one", "you said: hello world", "trailing ", "a  b", " lead"}
	for _, s := range cases {
		assert.Equal(t, s, strings.Join(SplitWords(s), ""), "input %q", s)
	}
	assert.Equal(t, []string{"you ", "said: ", "hi"}, SplitWords("you said: hi"))
}

func TestRegistry_AppendSnapshotForget(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Snapshot("s1")
	assert.False(t, ok)

	r.Append("s1", domain.NewTurn(domain.RoleUser, "hi"))
	conv, ok := r.Snapshot("s1")
	require.True(t, ok)
	assert.Equal(t, domain.SessionID("s1"), conv.SessionID)
	require.Len(t, conv.Turns, 1)
	assert.Equal(t, "hi", conv.Turns[0].Text)

	h := r.History("s1")
	h[0].Text = "mutated"
	assert.Equal(t, "hi", r.History("s1")[0].Text)

	assert.True(t, r.Forget("s1"))
	assert.False(t, r.Forget("s1"))
	assert.Equal(t, 0, r.Len())
}

func collect(t *testing.T, svc *ChatService, sid domain.SessionID, prompt string) []string {
	t.Helper()
	var parts []string
	err := svc.Stream(context.Background(), sid, prompt, func(p string) error {
		parts = append(parts, p)
		return nil
	})
	require.NoError(t, err)
	return parts
}

func TestChatService_StreamRecordsBothTurns(t *testing.T) {
	svc := NewChatService(NewRegistry(), NewEchoResponder(0))

	parts := collect(t, svc, "s1", "hello world")
	assert.Equal(t, "you said: hello world", strings.Join(parts, ""))

	turns := svc.Registry.History("s1")
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleUser, turns[0].Role)
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)
	assert.Equal(t, "you said: hello world", turns[1].Text)

	parts = collect(t, svc, "s1", "again")
	assert.Equal(t, "(turn 2) you said: again", strings.Join(parts, ""))
}

func TestChatService_EmptyPrompt(t *testing.T) {
	svc := NewChatService(NewRegistry(), NewEchoResponder(0))
	err := svc.Stream(context.Background(), "s1", "  ", func(string) error { return nil })
	assert.ErrorIs(t, err, domain.ErrPromptEmpty)
	assert.Equal(t, 0, svc.Registry.Len())
}

func TestChatService_EmitErrorStops(t *testing.T) {
	svc := NewChatService(NewRegistry(), NewEchoResponder(0))
	boom := errors.New("client gone")
	n := 0
	err := svc.Stream(context.Background(), "s1", "a b c d", func(string) error {
		n++
		if n == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	turns := svc.Registry.History("s1")
	require.Len(t, turns, 2)
	assert.Equal(t, "you ", turns[1].Text)
}

func TestChatService_ContextCancel(t *testing.T) {
	svc := NewChatService(NewRegistry(), NewEchoResponder(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	err := svc.Stream(ctx, "s1", "a b", func(string) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEchoResponder_SetDelay(t *testing.T) {
	r := NewEchoResponder(time.Second)
	r.SetDelay(5 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, r.Delay())
}
