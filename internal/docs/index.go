package docs

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/blevesearch/bleve"
)

const rrfK = 60 // reciprocal-rank-fusion constant

type vector struct {
	id  string
	vec []float32
}

// Index holds chunks in a memory-only bleve index alongside their embeddings.
type Index struct {
	mu      sync.RWMutex
	bleve   bleve.Index
	meta    map[string]Chunk
	vectors []vector
}

func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &Index{bleve: idx, meta: make(map[string]Chunk)}, nil
}

// Add indexes a chunk and its embedding. Re-adding an id replaces it.
func (x *Index) Add(c Chunk, vec []float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.bleve.Index(c.ID, c); err != nil {
		return fmt.Errorf("index chunk %s: %w", c.ID, err)
	}
	if _, exists := x.meta[c.ID]; exists {
		for i := range x.vectors {
			if x.vectors[i].id == c.ID {
				x.vectors[i].vec = vec
			}
		}
	} else {
		x.vectors = append(x.vectors, vector{id: c.ID, vec: vec})
	}
	x.meta[c.ID] = c
	return nil
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.meta)
}

func (x *Index) Close() error { return x.bleve.Close() }

// BM25 runs a match query over every indexed field.
func (x *Index) BM25(q string, k int) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), k, 0, false)
	res, err := x.bleve.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}
	out := make([]Hit, 0, len(res.Hits))
	for i, h := range res.Hits {
		out = append(out, x.hit(h.ID, h.Score, i+1))
	}
	return out, nil
}

// Vector ranks chunks by cosine similarity to q.
func (x *Index) Vector(q []float32, k int) []Hit {
	x.mu.RLock()
	defer x.mu.RUnlock()
	type scored struct {
		id    string
		score float64
	}
	all := make([]scored, 0, len(x.vectors))
	for _, v := range x.vectors {
		all = append(all, scored{id: v.id, score: cosine(q, v.vec)})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	if len(all) > k {
		all = all[:k]
	}
	out := make([]Hit, 0, len(all))
	for i, s := range all {
		out = append(out, x.hit(s.id, s.score, i+1))
	}
	return out
}

func (x *Index) hit(id string, score float64, rank int) Hit {
	c := x.meta[id]
	return Hit{ChunkID: id, URL: c.URL, Title: c.Title, Snippet: snippet(c.Text), Text: c.Text, Score: score, Rank: rank}
}

// FuseRRF merges ranked lists with reciprocal rank fusion and keeps the top k.
func FuseRRF(k int, lists ...[]Hit) []Hit {
	type agg struct {
		hit   Hit
		score float64
		first int
	}
	m := map[string]*agg{}
	seen := 0
	for _, list := range lists {
		for _, h := range list {
			a, ok := m[h.ChunkID]
			if !ok {
				a = &agg{hit: h, first: seen}
				m[h.ChunkID] = a
				seen++
			}
			a.score += 1.0 / float64(rrfK+h.Rank)
		}
	}
	items := make([]*agg, 0, len(m))
	for _, a := range m {
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].score == items[j].score {
			return items[i].first < items[j].first
		}
		return items[i].score > items[j].score
	})
	if len(items) > k {
		items = items[:k]
	}
	out := make([]Hit, len(items))
	for i, a := range items {
		h := a.hit
		h.Score = a.score
		h.Rank = i + 1
		out[i] = h
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= 300 {
		return s
	}
	return string(r[:300]) + "…"
}
