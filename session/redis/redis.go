package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/hermes/models"
)

const sessionKeyPrefix = "session:"

// Store keeps one JSON document per thread.
type Store struct {
	client *goredis.Client
}

func New(client *goredis.Client) *Store {
	return &Store{client: client}
}

func key(threadID string) string { return sessionKeyPrefix + threadID }

func (s *Store) Load(ctx context.Context, threadID string) (*models.WorkflowSession, error) {
	if threadID == "" {
		return nil, models.ErrThreadRequired
	}
	sess, err := s.get(ctx, threadID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, goredis.Nil) {
		return nil, err
	}

	sess = models.NewWorkflowSession(threadID)
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	created, err := s.client.SetNX(ctx, key(threadID), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", threadID, err)
	}
	if !created {
		return s.get(ctx, threadID)
	}
	return sess, nil
}

func (s *Store) get(ctx context.Context, threadID string) (*models.WorkflowSession, error) {
	val, err := s.client.Get(ctx, key(threadID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("get session %s: %w", threadID, err)
	}
	var sess models.WorkflowSession
	if err := json.Unmarshal(val, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", threadID, err)
	}
	if sess.Messages == nil {
		sess.Messages = []models.Message{}
	}
	return &sess, nil
}

func (s *Store) Save(ctx context.Context, sess *models.WorkflowSession) error {
	if sess == nil || sess.ThreadID == "" {
		return models.ErrThreadRequired
	}
	cp := sess.Clone()
	cp.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, key(sess.ThreadID), data, 0).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ThreadID, err)
	}
	return nil
}

func (s *Store) Evict(ctx context.Context, threadID string) error {
	if err := s.client.Del(ctx, key(threadID)).Err(); err != nil {
		return fmt.Errorf("evict session %s: %w", threadID, err)
	}
	return nil
}

func (s *Store) Close() error { return s.client.Close() }
