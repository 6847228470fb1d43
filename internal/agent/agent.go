package agent

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/hermes/internal/telemetry"
	"github.com/mohammad-safakhou/hermes/models"
	"github.com/mohammad-safakhou/hermes/provider"
)

const defaultMaxRounds = 6

var tracer = otel.Tracer("hermes/internal/agent")

// Profile is a fixed instruction set plus the tools available under it.
type Profile struct {
	Name         string
	Instructions string
	Tools        *Registry
}

// Agent drives the model/tool loop for one stage action.
type Agent struct {
	llm       provider.Provider
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	maxRounds int
}

// Option configures an Agent.
type Option func(*Agent)

func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithMaxRounds bounds the number of model requests per Invoke.
func WithMaxRounds(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxRounds = n
		}
	}
}

func New(llm provider.Provider, opts ...Option) *Agent {
	a := &Agent{llm: llm, logger: zap.NewNop(), maxRounds: defaultMaxRounds}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("agent")
	return a
}

// Invoke runs the model over history until it produces a message without tool
// calls. It returns every message produced, in generation order: assistant
// messages carrying tool calls, their tool results, and the final reply.
//
// Tool failures never surface as errors; they become tool result text. The
// returned error is only set when the model itself could not be reached, in
// which case the messages produced so far are still returned.
func (a *Agent) Invoke(ctx context.Context, profile Profile, history []models.Message) ([]models.Message, error) {
	ctx, span := tracer.Start(ctx, "agent.invoke")
	span.SetAttributes(attribute.String("agent.profile", profile.Name))
	defer span.End()

	working := make([]models.Message, len(history), len(history)+8)
	copy(working, history)
	var produced []models.Message
	specs := profile.Tools.Specs()

	for round := 0; round < a.maxRounds; round++ {
		started := time.Now()
		reply, err := a.llm.Complete(ctx, provider.ChatRequest{
			System:   profile.Instructions,
			Messages: working,
			Tools:    specs,
		})
		a.metrics.ModelLatency(time.Since(started))
		if err != nil {
			span.RecordError(err)
			return produced, fmt.Errorf("model request (%s round %d): %w", profile.Name, round+1, err)
		}
		produced = append(produced, reply)
		working = append(working, reply)
		if len(reply.ToolCalls) == 0 {
			return produced, nil
		}

		for _, call := range reply.ToolCalls {
			result := a.runTool(ctx, profile, call)
			msg := models.ToolMessage(call.Name, call.ID, result)
			produced = append(produced, msg)
			working = append(working, msg)
		}
	}

	a.logger.Warn("tool round limit reached", zap.String("profile", profile.Name), zap.Int("rounds", a.maxRounds))
	final := models.AssistantMessage(fmt.Sprintf("stopped after %d tool rounds without a final answer", a.maxRounds))
	produced = append(produced, final)
	return produced, nil
}

func (a *Agent) runTool(ctx context.Context, profile Profile, call models.ToolCall) string {
	ctx, span := tracer.Start(ctx, "agent.tool")
	span.SetAttributes(attribute.String("tool.name", call.Name))
	defer span.End()

	out, err := profile.Tools.Call(ctx, call.Name, call.Arguments)
	if err != nil {
		a.metrics.ToolCall(call.Name, "error")
		a.logger.Warn("tool failed", zap.String("tool", call.Name), zap.Error(err))
		return fmt.Sprintf("tool %s failed: %v", call.Name, err)
	}
	a.metrics.ToolCall(call.Name, "ok")
	a.logger.Debug("tool completed", zap.String("tool", call.Name), zap.Int("bytes", len(out)))
	return out
}
