package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/mohammad-safakhou/hermes/session/sqlstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS workflow_sessions (
  thread_id  TEXT PRIMARY KEY,
  stage      TEXT NOT NULL,
  terminated BOOLEAN NOT NULL DEFAULT 0,
  messages   TEXT NOT NULL DEFAULT '[]',
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
)`

// Store is the single-file checkpoint backend.
type Store struct {
	*sqlstore.Store
}

// Open creates the database file and schema when missing. Use ":memory:" for
// a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Store{Store: sqlstore.New(db, sqlstore.Question)}, nil
}
