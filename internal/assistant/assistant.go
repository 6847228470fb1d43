package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/hermes/internal/agent"
	"github.com/mohammad-safakhou/hermes/internal/helpers"
	"github.com/mohammad-safakhou/hermes/models"
	"github.com/mohammad-safakhou/hermes/session"
)

// Instructions is the system prompt of the general assistant.
const Instructions = "You are a helpful assistant. Use the available tools for the current time, the weather and sending email. " +
	"Send email without asking for confirmation, but ask for the recipient address when it is missing. " +
	"Answer in plain text without markdown."

// threadPrefix keeps chat threads apart from media acquisition threads in a shared store.
const threadPrefix = "chat:"

// Assistant answers general questions with tools, keeping per-thread history
// in the checkpoint store.
type Assistant struct {
	agent   *agent.Agent
	profile agent.Profile
	store   session.Store
	locks   *helpers.KeyedMutex
	logger  *zap.Logger
}

type Option func(*Assistant)

func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) {
		if l != nil {
			a.logger = l
		}
	}
}

func New(ag *agent.Agent, tools *agent.Registry, store session.Store, opts ...Option) *Assistant {
	a := &Assistant{
		agent:   ag,
		profile: agent.Profile{Name: "assistant", Instructions: Instructions, Tools: tools},
		store:   store,
		locks:   helpers.NewKeyedMutex(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("assistant")
	return a
}

// Chat appends text to the thread, runs the model with tools and returns the
// final reply. Model failures are reported as the reply.
func (a *Assistant) Chat(ctx context.Context, threadID, text string) (string, error) {
	if strings.TrimSpace(threadID) == "" {
		return "", models.ErrThreadRequired
	}
	defer a.locks.Lock(threadID)()

	sess, err := a.store.Load(ctx, threadPrefix+threadID)
	if err != nil {
		return "", fmt.Errorf("load chat %s: %w", threadID, err)
	}
	sess.Append(models.UserMessage(text))

	produced, err := a.agent.Invoke(ctx, a.profile, sess.Messages)
	sess.Append(produced...)
	if err != nil {
		a.logger.Warn("model request failed", zap.String("thread", threadID), zap.Error(err))
		sess.Append(models.AssistantMessage("sorry, the assistant is unavailable right now"))
	}
	sess.UpdatedAt = time.Now().UTC()
	if err := a.store.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("save chat %s: %w", threadID, err)
	}

	reply, _ := sess.LastAssistantMessage()
	return strings.TrimSpace(reply.Content), nil
}
