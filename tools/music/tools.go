package music

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohammad-safakhou/hermes/internal/selector"
)

const (
	SearchToolName   = "search_track_candidates"
	DownloadToolName = "download_track"
)

// Searcher is the candidate selector as seen by the search tool.
type Searcher interface {
	Select(ctx context.Context, title, qualifier string) (selector.Result, error)
}

// SearchTool exposes the candidate selector to the model.
type SearchTool struct {
	searcher Searcher
	header   string
}

func NewSearchTool(s Searcher, header string) *SearchTool {
	return &SearchTool{searcher: s, header: header}
}

func (t *SearchTool) Name() string { return SearchToolName }

func (t *SearchTool) Description() string {
	return "Searches the video site for candidate sources of a track. Pass the track title and optionally the artist. " +
		"Pick the single most relevant url from the result and pass it to " + DownloadToolName + "."
}

func (t *SearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string", "minLength": 1, "description": "track title"},
			"qualifier": {"type": "string", "description": "artist name (optional)"}
		},
		"required": ["title"]
	}`)
}

func (t *SearchTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Title     string `json:"title"`
		Qualifier string `json:"qualifier"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	res, err := t.searcher.Select(ctx, in.Title, in.Qualifier)
	if err != nil {
		return "", err
	}
	return selector.Render(res, t.header), nil
}

// DownloadTool exposes the downloader to the model.
type DownloadTool struct {
	downloader *Downloader
}

func NewDownloadTool(d *Downloader) *DownloadTool {
	return &DownloadTool{downloader: d}
}

func (t *DownloadTool) Name() string { return DownloadToolName }

func (t *DownloadTool) Description() string {
	return "Downloads the audio of one source url previously returned by " + SearchToolName + "."
}

func (t *DownloadTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"url": {"type": "string", "minLength": 1}},
		"required": ["url"]
	}`)
}

func (t *DownloadTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	return t.downloader.Download(ctx, in.URL), nil
}
