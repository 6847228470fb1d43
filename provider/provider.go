package provider

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/hermes/config"
	"github.com/mohammad-safakhou/hermes/models"
	openai_provider "github.com/mohammad-safakhou/hermes/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
	Ollama Client = "ollama"
)

const defaultOllamaURL = "http://localhost:11434/v1"

// ToolSpec describes a callable tool to the model.
type ToolSpec = openai_provider.ToolSpec

// ChatRequest is one model turn: instruction profile, ordered history and available tools.
type ChatRequest = openai_provider.ChatRequest

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	// Complete returns the next assistant message. The message carries either
	// final text or one or more tool calls.
	Complete(ctx context.Context, req ChatRequest) (models.Message, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Provider) {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm.api_key (or OPENAI_API_KEY) not set")
		}
		return openai_provider.NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.ChatModel, cfg.EmbeddingModel, cfg.Temperature, cfg.Timeout), nil
	case Ollama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
		key := cfg.APIKey
		if key == "" {
			key = "ollama"
		}
		return openai_provider.NewOpenAIClient(baseURL, key, cfg.ChatModel, cfg.EmbeddingModel, cfg.Temperature, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
