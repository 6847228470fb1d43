// Package sqlstore implements the checkpoint store on database/sql. The
// postgres and sqlite backends differ only in driver and placeholder style.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/hermes/models"
)

// Placeholder selects the bind parameter syntax of a driver.
type Placeholder int

const (
	Dollar   Placeholder = iota // $1, $2 (postgres)
	Question                    // ?, ? (sqlite)
)

type Store struct {
	DB          *sql.DB
	placeholder Placeholder
}

func New(db *sql.DB, p Placeholder) *Store {
	return &Store{DB: db, placeholder: p}
}

const selectSession = `
SELECT thread_id, stage, terminated, messages, created_at, updated_at
FROM workflow_sessions
WHERE thread_id=$1
`

const insertSession = `
INSERT INTO workflow_sessions (thread_id, stage, terminated, messages, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (thread_id) DO NOTHING
`

const upsertSession = `
INSERT INTO workflow_sessions (thread_id, stage, terminated, messages, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (thread_id) DO UPDATE SET
  stage=EXCLUDED.stage,
  terminated=EXCLUDED.terminated,
  messages=EXCLUDED.messages,
  updated_at=EXCLUDED.updated_at
`

const deleteSession = `DELETE FROM workflow_sessions WHERE thread_id=$1`

// Rebind converts $N placeholders to the store's syntax.
func (s *Store) Rebind(query string) string {
	if s.placeholder == Dollar {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			j := i + 1
			for j < len(query) && query[j] >= '0' && query[j] <= '9' {
				j++
			}
			if _, err := strconv.Atoi(query[i+1 : j]); err == nil {
				b.WriteByte('?')
				i = j - 1
				continue
			}
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *Store) Load(ctx context.Context, threadID string) (*models.WorkflowSession, error) {
	if threadID == "" {
		return nil, models.ErrThreadRequired
	}
	sess, err := s.get(ctx, threadID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	sess = models.NewWorkflowSession(threadID)
	res, err := s.DB.ExecContext(ctx, s.Rebind(insertSession),
		sess.ThreadID, string(sess.Stage), sess.Terminated, "[]", sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", threadID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return s.get(ctx, threadID)
	}
	return sess, nil
}

func (s *Store) get(ctx context.Context, threadID string) (*models.WorkflowSession, error) {
	var (
		sess     models.WorkflowSession
		stage    string
		messages []byte
	)
	err := s.DB.QueryRowContext(ctx, s.Rebind(selectSession), threadID).
		Scan(&sess.ThreadID, &stage, &sess.Terminated, &messages, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session %s: %w", threadID, err)
	}
	sess.Stage = models.Stage(stage)
	sess.Messages = []models.Message{}
	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &sess.Messages); err != nil {
			return nil, fmt.Errorf("decode messages %s: %w", threadID, err)
		}
	}
	return &sess, nil
}

func (s *Store) Save(ctx context.Context, sess *models.WorkflowSession) error {
	if sess == nil || sess.ThreadID == "" {
		return models.ErrThreadRequired
	}
	messages := sess.Messages
	if messages == nil {
		messages = []models.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	created := sess.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = s.DB.ExecContext(ctx, s.Rebind(upsertSession),
		sess.ThreadID, string(sess.Stage), sess.Terminated, string(data), created, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ThreadID, err)
	}
	return nil
}

func (s *Store) Evict(ctx context.Context, threadID string) error {
	if _, err := s.DB.ExecContext(ctx, s.Rebind(deleteSession), threadID); err != nil {
		return fmt.Errorf("evict session %s: %w", threadID, err)
	}
	return nil
}

func (s *Store) Close() error { return s.DB.Close() }
