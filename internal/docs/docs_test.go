package docs

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mohammad-safakhou/hermes/config"
	"github.com/mohammad-safakhou/hermes/internal/agent/agenttest"
)

type stubFetcher map[string]string

func (s stubFetcher) FetchHTML(_ context.Context, url string) (string, error) {
	html, ok := s[url]
	if !ok {
		return "", errors.New("404")
	}
	return html, nil
}

// bagOfWords hashes words into a small vector so texts sharing words are close.
func bagOfWords(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 32)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			h.Write([]byte(strings.Trim(w, ".,?!")))
			v[h.Sum32()%32]++
		}
		out[i] = v
	}
	return out, nil
}

const page = `<html><head><title>Gardening notes</title></head><body>
<div class="nav">home about contact</div>
<div class="post-content"><p>Tomatoes need full sun and regular watering.</p></div>
<div class="post-content"><p>Basil grows well next to tomatoes.</p></div>
<div class="comments">great post</div>
</body></html>`

func TestSplit(t *testing.T) {
	if got := Split("  short  ", 10, 2); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short text = %q", got)
	}
	if got := Split("   ", 10, 2); got != nil {
		t.Fatalf("blank text = %q", got)
	}

	text := strings.Repeat("alpha beta gamma delta ", 40)
	chunks := Split(text, 100, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 100 {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
	}
	tail := chunks[0][len(chunks[0])-10:]
	if !strings.Contains(chunks[1], strings.TrimSpace(tail)) {
		t.Fatalf("chunks do not overlap: %q / %q", chunks[0], chunks[1])
	}
}

func TestSplitMultibyte(t *testing.T) {
	text := strings.Repeat("番茄需要充足的阳光", 50)
	for _, c := range Split(text, 40, 5) {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk is not valid utf-8")
		}
	}
}

func TestFuseRRF(t *testing.T) {
	a := []Hit{{ChunkID: "x", Rank: 1}, {ChunkID: "y", Rank: 2}}
	b := []Hit{{ChunkID: "y", Rank: 1}, {ChunkID: "z", Rank: 2}}
	got := FuseRRF(2, a, b)
	if len(got) != 2 || got[0].ChunkID != "y" || got[1].ChunkID != "x" {
		t.Fatalf("fused = %+v", got)
	}
	if got[0].Rank != 1 || got[1].Rank != 2 {
		t.Fatalf("ranks not renumbered: %+v", got)
	}
}

func TestIndexSearch(t *testing.T) {
	idx, err := NewIndex()
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	defer idx.Close()
	idx.Add(Chunk{ID: "a", Text: "tomatoes need sun"}, []float32{1, 0})
	idx.Add(Chunk{ID: "b", Text: "bicycles need oil"}, []float32{0, 1})

	bm, err := idx.BM25("tomatoes", 3)
	if err != nil {
		t.Fatalf("bm25: %v", err)
	}
	if len(bm) != 1 || bm[0].ChunkID != "a" {
		t.Fatalf("bm25 hits = %+v", bm)
	}
	vec := idx.Vector([]float32{0, 1}, 1)
	if len(vec) != 1 || vec[0].ChunkID != "b" {
		t.Fatalf("vector hits = %+v", vec)
	}
}

func newService(t *testing.T, llm *agenttest.Provider) *Service {
	t.Helper()
	llm.Embed = bagOfWords
	s, err := NewService(config.DocsConfig{ChunkSize: 1500, ChunkOverlap: 200, TopK: 4},
		stubFetcher{"https://blog.example/garden": page}, llm)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIngestWithClassFilter(t *testing.T) {
	s := newService(t, agenttest.NewProvider())
	res, err := s.Ingest(context.Background(), "https://blog.example/garden", "post-content")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Title != "Gardening notes" || res.Chunks != 1 {
		t.Fatalf("result = %+v", res)
	}
	hits, err := s.Similar(context.Background(), "what grows next to tomatoes")
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(hits) == 0 {
		t.Fatalf("no hits")
	}
	if strings.Contains(hits[0].Text, "great post") || strings.Contains(hits[0].Text, "contact") {
		t.Fatalf("class filter leaked other content: %q", hits[0].Text)
	}
	if !strings.Contains(hits[0].Text, "Basil") {
		t.Fatalf("hit text = %q", hits[0].Text)
	}
}

func TestIngestFetchFailure(t *testing.T) {
	s := newService(t, agenttest.NewProvider())
	if _, err := s.Ingest(context.Background(), "https://missing.example", ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSimilarOnEmptyIndex(t *testing.T) {
	s := newService(t, agenttest.NewProvider())
	if _, err := s.Similar(context.Background(), "anything"); !errors.Is(err, ErrEmptyIndex) {
		t.Fatalf("expected ErrEmptyIndex, got %v", err)
	}
}

func TestAskUsesContextAndHistory(t *testing.T) {
	llm := agenttest.NewProvider(
		agenttest.Reply("Tomatoes need full sun."),
		agenttest.Reply("what grows next to tomatoes"),
		agenttest.Reply("Basil."),
	)
	s := newService(t, llm)
	if _, err := s.Ingest(context.Background(), "https://blog.example/garden", "post-content"); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	first, err := s.Ask(context.Background(), "t1", "what do tomatoes need")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if first.Answer != "Tomatoes need full sun." || len(first.Hits) == 0 {
		t.Fatalf("first answer = %+v", first)
	}
	if !strings.Contains(llm.Requests[0].System, "full sun") {
		t.Fatalf("answer prompt lacks retrieved context: %q", llm.Requests[0].System)
	}

	second, err := s.Ask(context.Background(), "t1", "and what grows next to them")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if second.Answer != "Basil." {
		t.Fatalf("second answer = %q", second.Answer)
	}
	if len(llm.Requests) != 3 {
		t.Fatalf("expected rewrite plus answer on follow-up, got %d requests", len(llm.Requests))
	}
	if got := len(llm.Requests[1].Messages); got != 3 {
		t.Fatalf("rewrite request carried %d messages, want history plus question", got)
	}
	if got := len(s.History("t1")); got != 4 {
		t.Fatalf("history length = %d", got)
	}
}
