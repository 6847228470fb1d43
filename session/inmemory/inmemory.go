package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/hermes/models"
)

type Store struct {
	sessions map[string]*models.WorkflowSession
	mu       sync.RWMutex
}

func NewInMemorySessionStore() *Store {
	return &Store{sessions: make(map[string]*models.WorkflowSession)}
}

func (store *Store) Load(_ context.Context, threadID string) (*models.WorkflowSession, error) {
	if threadID == "" {
		return nil, models.ErrThreadRequired
	}
	store.mu.RLock()
	sess, ok := store.sessions[threadID]
	store.mu.RUnlock()
	if ok {
		return sess.Clone(), nil
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if sess, ok := store.sessions[threadID]; ok {
		return sess.Clone(), nil
	}
	sess = models.NewWorkflowSession(threadID)
	store.sessions[threadID] = sess
	return sess.Clone(), nil
}

func (store *Store) Save(_ context.Context, s *models.WorkflowSession) error {
	if s == nil || s.ThreadID == "" {
		return models.ErrThreadRequired
	}
	cp := s.Clone()
	cp.UpdatedAt = time.Now().UTC()
	store.mu.Lock()
	defer store.mu.Unlock()
	store.sessions[s.ThreadID] = cp
	return nil
}

func (store *Store) Evict(_ context.Context, threadID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.sessions, threadID)
	return nil
}

func (store *Store) Close() error { return nil }
