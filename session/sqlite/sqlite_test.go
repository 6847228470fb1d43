package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mohammad-safakhou/hermes/models"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, filepath.Join(t.TempDir(), "checkpoints.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	s, err := st.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Stage != models.StageAnalysis {
		t.Fatalf("stage = %s", s.Stage)
	}
	s.Append(models.UserMessage("download Song"))
	msg := models.AssistantMessage("")
	msg.ToolCalls = []models.ToolCall{{ID: "c1", Name: "search_track_candidates", Arguments: `{"title":"Song"}`}}
	s.Append(msg)
	s.Stage = models.StageDownload
	if err := st.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := st.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Stage != models.StageDownload || len(got.Messages) != 2 {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.Messages[1].ToolCalls[0].Name != "search_track_candidates" {
		t.Fatalf("tool calls lost: %+v", got.Messages[1])
	}

	if err := st.Evict(ctx, "t1"); err != nil {
		t.Fatalf("evict: %v", err)
	}
	fresh, err := st.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("load after evict: %v", err)
	}
	if len(fresh.Messages) != 0 {
		t.Fatal("expected empty session after evict")
	}
}

func TestSQLiteLoadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	a, err := st.Load(ctx, "same")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b, err := st.Load(ctx, "same")
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if a.ThreadID != b.ThreadID || b.Stage != models.StageAnalysis {
		t.Fatalf("unexpected sessions %+v %+v", a, b)
	}
}
