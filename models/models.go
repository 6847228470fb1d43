package models

import (
	"errors"
	"time"
)

// ErrThreadRequired is returned when an operation needs a thread identifier and none was given.
var ErrThreadRequired = errors.New("thread id required")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is an invocation request emitted by the model inside an assistant message.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is a single entry of a conversation history. Messages are never
// modified after they are appended to a session.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, CreatedAt: time.Now().UTC()}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, CreatedAt: time.Now().UTC()}
}

// ToolMessage builds the result message of a tool invocation.
func ToolMessage(tool, callID, content string) Message {
	return Message{Role: RoleTool, Name: tool, ToolCallID: callID, Content: content, CreatedAt: time.Now().UTC()}
}

type Stage string

const (
	StageAnalysis   Stage = "analysis"
	StageDownload   Stage = "download"
	StageTerminated Stage = "terminated"
)

// WorkflowSession is the checkpointed state of one conversation thread.
type WorkflowSession struct {
	ThreadID   string    `json:"thread_id"`
	Messages   []Message `json:"messages"`
	Stage      Stage     `json:"stage"`
	Terminated bool      `json:"terminated"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewWorkflowSession returns an empty session positioned at the initial stage.
func NewWorkflowSession(threadID string) *WorkflowSession {
	now := time.Now().UTC()
	return &WorkflowSession{
		ThreadID:  threadID,
		Messages:  []Message{},
		Stage:     StageAnalysis,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds messages to the end of the history.
func (s *WorkflowSession) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// Clone returns a deep copy so stores never share backing arrays with callers.
func (s *WorkflowSession) Clone() *WorkflowSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		if len(m.ToolCalls) > 0 {
			m.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
		}
		out.Messages[i] = m
	}
	return &out
}

// LastAssistantMessage returns the most recent assistant message carrying text.
func (s *WorkflowSession) LastAssistantMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role == RoleAssistant && m.Content != "" {
			return m, true
		}
	}
	return Message{}, false
}

// CandidateTrack is one ranked search result produced by the candidate selector.
type CandidateTrack struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}
