package session

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/hermes/config"
	"github.com/mohammad-safakhou/hermes/models"
	"github.com/mohammad-safakhou/hermes/session/inmemory"
	"github.com/mohammad-safakhou/hermes/session/postgres"
	"github.com/mohammad-safakhou/hermes/session/redis"
	"github.com/mohammad-safakhou/hermes/session/sqlite"
)

// ErrUnavailable wraps backend failures so callers can tell infrastructure
// errors from caller mistakes.
var ErrUnavailable = errors.New("checkpoint store unavailable")

// Store persists workflow sessions keyed by thread id. Load creates a session
// positioned at the initial stage when none exists. Implementations never
// share message slices with callers.
type Store interface {
	Load(ctx context.Context, threadID string) (*models.WorkflowSession, error)
	Save(ctx context.Context, s *models.WorkflowSession) error
	Evict(ctx context.Context, threadID string) error
	Close() error
}

type StoreType string

const (
	InMemoryStore StoreType = "memory"
	RedisStore    StoreType = "redis"
	PostgresStore StoreType = "postgres"
	SQLiteStore   StoreType = "sqlite"
)

// NewStore opens the backend selected by storage.checkpoint.backend.
func NewStore(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch StoreType(cfg.Checkpoint.Backend) {
	case InMemoryStore:
		return inmemory.NewInMemorySessionStore(), nil
	case RedisStore:
		client := goredis.NewClient(&goredis.Options{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.Timeout,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%w: redis ping: %v", ErrUnavailable, err)
		}
		return redis.New(client), nil
	case PostgresStore:
		st, err := postgres.NewWithDSN(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return st, nil
	case SQLiteStore:
		st, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Checkpoint.Backend)
	}
}
