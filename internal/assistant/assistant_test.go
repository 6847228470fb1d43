package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/mohammad-safakhou/hermes/internal/agent"
	"github.com/mohammad-safakhou/hermes/internal/agent/agenttest"
	"github.com/mohammad-safakhou/hermes/models"
	"github.com/mohammad-safakhou/hermes/session/inmemory"
)

func newAssistant(t *testing.T, llm *agenttest.Provider, tools ...agent.Tool) (*Assistant, *inmemory.Store) {
	t.Helper()
	reg, err := agent.NewRegistry(tools...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	store := inmemory.NewInMemorySessionStore()
	return New(agent.New(llm), reg, store), store
}

func TestChatUsesToolsAndKeepsHistory(t *testing.T) {
	llm := agenttest.NewProvider(
		agenttest.Call("c1", "get_now", `{}`),
		agenttest.Reply("it is 09:00"),
		agenttest.Reply("you are welcome"),
	)
	a, store := newAssistant(t, llm, agenttest.Static("get_now", "2025-01-01 09:00:00"))
	ctx := context.Background()

	reply, err := a.Chat(ctx, "t1", "what time is it")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "it is 09:00" {
		t.Fatalf("reply = %q", reply)
	}

	if _, err := a.Chat(ctx, "t1", "thanks"); err != nil {
		t.Fatalf("chat: %v", err)
	}
	last := llm.Requests[len(llm.Requests)-1]
	if len(last.Messages) != 5 {
		t.Fatalf("second turn saw %d messages, want full history", len(last.Messages))
	}

	sess, _ := store.Load(ctx, "chat:t1")
	if len(sess.Messages) != 6 {
		t.Fatalf("stored %d messages", len(sess.Messages))
	}
}

func TestChatModelFailureIsReply(t *testing.T) {
	llm := agenttest.NewProvider(agenttest.Fail(errors.New("timeout")))
	a, _ := newAssistant(t, llm)
	reply, err := a.Chat(context.Background(), "t1", "hello")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply == "" {
		t.Fatalf("expected a failure reply")
	}
}

func TestChatRequiresThread(t *testing.T) {
	a, _ := newAssistant(t, agenttest.NewProvider())
	if _, err := a.Chat(context.Background(), " ", "hi"); !errors.Is(err, models.ErrThreadRequired) {
		t.Fatalf("expected ErrThreadRequired, got %v", err)
	}
}
