package redis

import (
	"context"
	"fmt"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/hermes/models"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	t.Cleanup(func() { _ = redisC.Terminate(ctx) })

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	st := New(goredis.NewClient(&goredis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())}))
	t.Cleanup(func() { _ = st.Close() })

	s, err := st.Load(ctx, "thread-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Stage != models.StageAnalysis {
		t.Fatalf("stage = %s", s.Stage)
	}
	s.Append(models.UserMessage("download Song"), models.ToolMessage("download_track", "c1", "all downloads succeeded. saved local path:/tmp/a.mp3"))
	s.Stage = models.StageTerminated
	if err := st.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := st.Load(ctx, "thread-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(got.Messages) != 2 || got.Stage != models.StageTerminated || got.Messages[1].Name != "download_track" {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := st.Evict(ctx, "thread-1"); err != nil {
		t.Fatalf("evict: %v", err)
	}
	fresh, _ := st.Load(ctx, "thread-1")
	if len(fresh.Messages) != 0 {
		t.Fatal("expected empty session after evict")
	}
}
