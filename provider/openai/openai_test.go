package openai_provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammad-safakhou/hermes/models"
)

func TestCompleteMapsToolCalls(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role       string `json:"role"`
			Content    string `json:"content"`
			ToolCallID string `json:"tool_call_id"`
		} `json:"messages"`
		Tools []struct {
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		} `json:"tools"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function","function":{"name":"select_candidates","arguments":"{\"title\":\"Song\"}"}}]}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/v1", "k", "gpt-test", "embed-test", 0, 5*time.Second)
	msg, err := c.Complete(context.Background(), ChatRequest{
		System: "be brief",
		Messages: []models.Message{
			models.UserMessage("download Song"),
			models.ToolMessage("clock", "call_0", "noon"),
		},
		Tools: []ToolSpec{{Name: "select_candidates", Description: "d", Parameters: json.RawMessage(`{"type":"object"}`)}},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Model != "gpt-test" {
		t.Fatalf("model = %q", got.Model)
	}
	if len(got.Messages) != 3 || got.Messages[0].Role != "system" || got.Messages[2].ToolCallID != "call_0" {
		t.Fatalf("unexpected wire messages: %+v", got.Messages)
	}
	if len(got.Tools) != 1 || got.Tools[0].Function.Name != "select_candidates" {
		t.Fatalf("unexpected tools: %+v", got.Tools)
	}
	if msg.Role != models.RoleAssistant || len(msg.ToolCalls) != 1 {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.ToolCalls[0].Name != "select_candidates" || msg.ToolCalls[0].Arguments != `{"title":"Song"}` {
		t.Fatalf("unexpected call: %+v", msg.ToolCalls[0])
	}
}

func TestCreateEmbeddingKeepsInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":1,"embedding":[0,1]},{"object":"embedding","index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "k", "m", "e", 0, time.Second)
	vecs, err := c.CreateEmbedding(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Fatalf("order not preserved: %v", vecs)
	}
}

func TestCreateEmbeddingEmptyInput(t *testing.T) {
	c := NewOpenAIClient("http://127.0.0.1:1", "k", "m", "e", 0, time.Second)
	vecs, err := c.CreateEmbedding(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("expected nil, nil; got %v, %v", vecs, err)
	}
}
