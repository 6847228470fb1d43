package server

import (
	"github.com/mohammad-safakhou/hermes/internal/docs"
	"github.com/mohammad-safakhou/hermes/models"
)

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// ChatRequest is the body of the chat and music endpoints.
type ChatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

// ChatResponse is a general assistant reply.
type ChatResponse struct {
	ThreadID string `json:"thread_id"`
	Reply    string `json:"reply"`
}

// MusicResponse is the outcome of one acquisition run.
type MusicResponse struct {
	ThreadID   string       `json:"thread_id"`
	Reply      string       `json:"reply"`
	Artifact   string       `json:"artifact,omitempty"`
	Stage      models.Stage `json:"stage"`
	Iterations int          `json:"iterations"`
}

// AskRequest is a document question.
type AskRequest struct {
	ThreadID string `json:"thread_id"`
	Question string `json:"question"`
}

// IngestRequest names a page to add to the document store.
type IngestRequest struct {
	URL      string `json:"url"`
	Selector string `json:"selector"`
}

// SimilarResponse lists the chunks closest to a question.
type SimilarResponse struct {
	Question string     `json:"question"`
	Hits     []docs.Hit `json:"hits"`
}
