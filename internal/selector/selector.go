package selector

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/hermes/config"
	"github.com/mohammad-safakhou/hermes/internal/telemetry"
	"github.com/mohammad-safakhou/hermes/models"
	"github.com/mohammad-safakhou/hermes/tools/web_fetch"
)

// MaxCandidates is the hard cap on returned candidates.
const MaxCandidates = 15

const idealSuffix = " official Hi-Res music video"

var tracer = otel.Tracer("hermes/internal/selector")

// Embedder turns texts into vectors in one request, preserving order.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is the outcome of one selection. An empty result is a valid outcome.
type Result struct {
	Keywords   string                  `json:"keywords"`
	Candidates []models.CandidateTrack `json:"candidates"`
}

func (r Result) Empty() bool { return len(r.Candidates) == 0 }

// Selector searches a video surface twice, merges the result cards and ranks
// them by similarity to an ideal title.
type Selector struct {
	searchURL string
	limit     int
	cards     cardParser
	fetcher   web_fetch.WebFetcher
	embedder  Embedder
	logger    *zap.Logger
	metrics   *telemetry.Metrics
}

type Option func(*Selector)

func WithLogger(l *zap.Logger) Option {
	return func(s *Selector) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Selector) { s.metrics = m }
}

func New(cfg config.SelectorConfig, fetcher web_fetch.WebFetcher, embedder Embedder, opts ...Option) (*Selector, error) {
	if fetcher == nil || embedder == nil {
		return nil, fmt.Errorf("selector requires a fetcher and an embedder")
	}
	if _, err := url.Parse(cfg.SearchURL); err != nil || cfg.SearchURL == "" {
		return nil, fmt.Errorf("invalid search url %q", cfg.SearchURL)
	}
	cards, err := newCardParser(cfg.CardSelector, cfg.TitleSelector)
	if err != nil {
		return nil, err
	}
	limit := cfg.MaxCandidates
	if limit <= 0 || limit > MaxCandidates {
		limit = MaxCandidates
	}
	s := &Selector{
		searchURL: cfg.SearchURL,
		limit:     limit,
		cards:     cards,
		fetcher:   fetcher,
		embedder:  embedder,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("selector")
	return s, nil
}

// Keywords joins qualifier and title the way the search surface expects.
func Keywords(title, qualifier string) string {
	title = strings.TrimSpace(title)
	qualifier = strings.TrimSpace(qualifier)
	if qualifier == "" {
		return title
	}
	return qualifier + " " + title
}

// IdealMatch is the synthesized string every candidate title is compared against.
func IdealMatch(title, qualifier string) string {
	return strings.TrimSpace(title) + strings.TrimSpace(qualifier) + idealSuffix
}

// SearchURLs returns the popularity-ordered and relevance-ordered queries.
func (s *Selector) SearchURLs(keywords string) (byClick, byRelevance string) {
	u, _ := url.Parse(s.searchURL)
	q := u.Query()
	q.Set("keyword", keywords)
	u.RawQuery = q.Encode()
	byRelevance = u.String()
	q.Set("order", "click")
	u.RawQuery = q.Encode()
	byClick = u.String()
	return byClick, byRelevance
}

// Select runs both searches and returns at most MaxCandidates ranked candidates.
// Page failures degrade to an empty page; only embedding failures are errors.
func (s *Selector) Select(ctx context.Context, title, qualifier string) (Result, error) {
	keywords := Keywords(title, qualifier)
	ctx, span := tracer.Start(ctx, "selector.select")
	span.SetAttributes(attribute.String("selector.keywords", keywords))
	defer span.End()

	res := Result{Keywords: keywords}
	if keywords == "" {
		return res, fmt.Errorf("title is required")
	}

	byClick, byRelevance := s.SearchURLs(keywords)
	merged := newPool()
	for _, page := range []string{byClick, byRelevance} {
		merged.add(s.page(ctx, page)...)
	}

	if merged.len() == 0 {
		s.metrics.SelectorCandidates(0)
		return res, nil
	}

	titles := merged.titles()
	texts := append([]string{IdealMatch(title, qualifier)}, titles...)
	vecs, err := s.embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return res, fmt.Errorf("embed candidates: %w", err)
	}
	if len(vecs) != len(texts) {
		return res, fmt.Errorf("embed candidates: got %d vectors for %d texts", len(vecs), len(texts))
	}

	res.Candidates = Rank(merged.candidates(), vecs[0], vecs[1:], s.limit)
	s.metrics.SelectorCandidates(len(res.Candidates))
	s.logger.Debug("candidates ranked", zap.String("keywords", keywords), zap.Int("pool", merged.len()), zap.Int("returned", len(res.Candidates)))
	return res, nil
}

func (s *Selector) page(ctx context.Context, pageURL string) []card {
	html, err := s.fetcher.FetchHTML(ctx, pageURL)
	if err != nil {
		s.logger.Warn("search page fetch failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	cards, err := s.cards.parse(html, pageURL)
	if err != nil {
		s.logger.Warn("search page parse failed", zap.String("url", pageURL), zap.Error(err))
		return nil
	}
	return cards
}

// Rank scores candidates against ideal, sorts descending and truncates to limit.
// Ties keep pool order.
func Rank(candidates []models.CandidateTrack, ideal []float32, vecs [][]float32, limit int) []models.CandidateTrack {
	out := make([]models.CandidateTrack, len(candidates))
	for i, c := range candidates {
		c.Score = Cosine(ideal, vecs[i])
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Cosine returns dot(a,b)/(|a||b|), or 0 when either vector has no magnitude.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		na += float64(v) * float64(v)
	}
	for _, v := range b {
		nb += float64(v) * float64(v)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// pool merges cards keyed by locator. Position is fixed by first sighting,
// the title by the last.
type pool struct {
	order []string
	byURL map[string]string
}

func newPool() *pool { return &pool{byURL: make(map[string]string)} }

func (p *pool) add(cards ...card) {
	for _, c := range cards {
		if _, seen := p.byURL[c.url]; !seen {
			p.order = append(p.order, c.url)
		}
		p.byURL[c.url] = c.title
	}
}

func (p *pool) len() int { return len(p.order) }

func (p *pool) titles() []string {
	out := make([]string, len(p.order))
	for i, u := range p.order {
		out[i] = p.byURL[u]
	}
	return out
}

func (p *pool) candidates() []models.CandidateTrack {
	out := make([]models.CandidateTrack, len(p.order))
	for i, u := range p.order {
		out[i] = models.CandidateTrack{Title: p.byURL[u], URL: u}
	}
	return out
}
