package workflow

import (
	"strings"

	"github.com/mohammad-safakhou/hermes/config"
	"github.com/mohammad-safakhou/hermes/models"
)

// Markers are the literal phrases tools emit and guards look for.
type Markers struct {
	CandidatesFound string
	SearchDomain    string
	DownloadSuccess string
	SavedPath       string
}

func MarkersFromConfig(c config.MarkersConfig) Markers {
	return Markers{
		CandidatesFound: c.CandidatesFound,
		SearchDomain:    c.SearchDomain,
		DownloadSuccess: c.DownloadSuccess,
		SavedPath:       c.SavedPath,
	}
}

// Predicate decides a transition from the session history.
type Predicate func(msgs []models.Message) bool

// LatestToolContains holds when the most recent tool message contains every part.
func LatestToolContains(parts ...string) Predicate {
	return func(msgs []models.Message) bool {
		last, ok := lastTool(msgs)
		if !ok {
			return false
		}
		for _, p := range parts {
			if !strings.Contains(last.Content, p) {
				return false
			}
		}
		return true
	}
}

// ShouldDownload holds when the latest tool result is a candidate list from
// the search domain.
func (m Markers) ShouldDownload() Predicate {
	return LatestToolContains(m.CandidatesFound, m.SearchDomain)
}

// ShouldEnd holds when the latest tool result reports a finished download.
func (m Markers) ShouldEnd() Predicate {
	return LatestToolContains(m.DownloadSuccess)
}

// ExtractArtifact scans msgs in reverse for a result of tool carrying marker
// and returns the trimmed text after it.
func ExtractArtifact(msgs []models.Message, tool, marker string) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != models.RoleTool || m.Name != tool {
			continue
		}
		idx := strings.Index(m.Content, marker)
		if idx < 0 {
			continue
		}
		path := strings.TrimSpace(m.Content[idx+len(marker):])
		if path == "" {
			continue
		}
		return path, true
	}
	return "", false
}

func lastTool(msgs []models.Message) (models.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleTool {
			return msgs[i], true
		}
	}
	return models.Message{}, false
}

func lastReply(msgs []models.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleAssistant && msgs[i].Content != "" {
			return msgs[i].Content
		}
	}
	return ""
}
