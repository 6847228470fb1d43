package docs

import "time"

// Chunk is one indexed slice of an ingested page.
type Chunk struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	ContentHash string    `json:"content_hash"`
	ChunkIndex  int       `json:"chunk_index"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// Hit is a ranked retrieval result.
type Hit struct {
	ChunkID string  `json:"chunk_id"`
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Text    string  `json:"-"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// IngestResult summarises one ingestion.
type IngestResult struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Chunks int    `json:"chunks"`
}

// Answer is a grounded reply plus the chunks it was built from.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Hits     []Hit  `json:"hits"`
}
