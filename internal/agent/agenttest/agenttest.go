// Package agenttest provides scripted model and tool fakes for tests.
package agenttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mohammad-safakhou/hermes/models"
	"github.com/mohammad-safakhou/hermes/provider"
)

// Step decides the next model reply given the request it was sent.
type Step func(req provider.ChatRequest) (models.Message, error)

// Reply returns a step producing a final text message.
func Reply(text string) Step {
	return func(provider.ChatRequest) (models.Message, error) {
		return models.AssistantMessage(text), nil
	}
}

// Call returns a step requesting a single tool invocation.
func Call(id, tool, args string) Step {
	return func(provider.ChatRequest) (models.Message, error) {
		msg := models.AssistantMessage("")
		msg.ToolCalls = []models.ToolCall{{ID: id, Name: tool, Arguments: args}}
		return msg, nil
	}
}

// Fail returns a step whose model request errors.
func Fail(err error) Step {
	return func(provider.ChatRequest) (models.Message, error) {
		return models.Message{}, err
	}
}

// Provider replays steps in order and records every request.
type Provider struct {
	mu       sync.Mutex
	steps    []Step
	Requests []provider.ChatRequest
	Embed    func(texts []string) ([][]float32, error)
}

func NewProvider(steps ...Step) *Provider {
	return &Provider{steps: steps}
}

func (p *Provider) Complete(_ context.Context, req provider.ChatRequest) (models.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if len(p.steps) == 0 {
		return models.Message{}, fmt.Errorf("agenttest: no scripted step left")
	}
	step := p.steps[0]
	p.steps = p.steps[1:]
	return step(req)
}

func (p *Provider) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	if p.Embed == nil {
		return nil, fmt.Errorf("agenttest: embeddings not scripted")
	}
	return p.Embed(texts)
}

// Tool is a Tool backed by a function.
type Tool struct {
	ToolName string
	Params   json.RawMessage
	Fn       func(ctx context.Context, args json.RawMessage) (string, error)

	mu    sync.Mutex
	Calls []json.RawMessage
}

func (t *Tool) Name() string            { return t.ToolName }
func (t *Tool) Description() string     { return "test tool " + t.ToolName }
func (t *Tool) Schema() json.RawMessage { return t.Params }

func (t *Tool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	t.mu.Lock()
	t.Calls = append(t.Calls, args)
	t.mu.Unlock()
	if t.Fn == nil {
		return "", nil
	}
	return t.Fn(ctx, args)
}

// Static returns a tool that always answers text.
func Static(name, text string) *Tool {
	return &Tool{ToolName: name, Fn: func(context.Context, json.RawMessage) (string, error) { return text, nil }}
}
