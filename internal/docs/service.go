package docs

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/mohammad-safakhou/hermes/config"
	"github.com/mohammad-safakhou/hermes/internal/helpers"
	"github.com/mohammad-safakhou/hermes/models"
	"github.com/mohammad-safakhou/hermes/provider"
	"github.com/mohammad-safakhou/hermes/tools/web_fetch"
)

const (
	rewritePrompt = "Given a chat history and the latest user question which might reference context in the chat history, " +
		"formulate a standalone question which can be understood without the chat history. " +
		"Do NOT answer the question, just reformulate it if needed and otherwise return it as is."

	answerPrompt = "You are an assistant for question-answering tasks. Use the following retrieved context to answer the question. " +
		"If you don't know the answer, say that you don't know. Respond in plain text without markdown.\n\n"
)

var (
	ErrEmptyDocument = errors.New("no text extracted from document")
	ErrEmptyIndex    = errors.New("no documents ingested yet")
)

var tracer = otel.Tracer("hermes/internal/docs")

// Service ingests web pages and answers questions grounded in them.
type Service struct {
	cfg     config.DocsConfig
	index   *Index
	fetcher web_fetch.WebFetcher
	llm     provider.Provider
	logger  *zap.Logger

	mu      sync.Mutex
	history map[string][]models.Message
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(cfg config.DocsConfig, fetcher web_fetch.WebFetcher, llm provider.Provider, opts ...Option) (*Service, error) {
	if fetcher == nil || llm == nil {
		return nil, fmt.Errorf("docs service requires a fetcher and a model")
	}
	idx, err := NewIndex()
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:     cfg.Normalize(),
		index:   idx,
		fetcher: fetcher,
		llm:     llm,
		logger:  zap.NewNop(),
		history: make(map[string][]models.Message),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("docs")
	return s, nil
}

func (s *Service) Close() error { return s.index.Close() }

// Ingest fetches a page, extracts its text and indexes it in chunks. When
// class is set only elements carrying that CSS class contribute text.
func (s *Service) Ingest(ctx context.Context, pageURL, class string) (IngestResult, error) {
	ctx, span := tracer.Start(ctx, "docs.ingest")
	span.SetAttributes(attribute.String("docs.url", pageURL))
	defer span.End()

	if canon, err := helpers.CanonicalURL(pageURL); err == nil {
		pageURL = canon
	}
	res := IngestResult{URL: pageURL}
	raw, err := s.fetcher.FetchHTML(ctx, pageURL)
	if err != nil {
		return res, fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	var text string
	if class = strings.TrimSpace(class); class != "" {
		res.Title, text, err = extractByClass(raw, class)
	} else {
		article, aerr := web_fetch.ExtractArticle(raw, pageURL)
		res.Title, text, err = article.Title, article.Text, aerr
	}
	if err != nil {
		return res, err
	}
	parts := Split(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if len(parts) == 0 {
		return res, ErrEmptyDocument
	}

	vecs, err := s.llm.CreateEmbedding(ctx, parts)
	if err != nil {
		return res, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(parts) {
		return res, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vecs), len(parts))
	}

	sum := sha1.Sum([]byte(text))
	hash := hex.EncodeToString(sum[:])
	now := time.Now().UTC()
	for i, part := range parts {
		c := Chunk{
			ID:          fmt.Sprintf("%s#%03d", hash, i),
			URL:         pageURL,
			Title:       res.Title,
			Text:        part,
			ContentHash: hash,
			ChunkIndex:  i,
			IngestedAt:  now,
		}
		if err := s.index.Add(c, vecs[i]); err != nil {
			return res, err
		}
	}
	res.Chunks = len(parts)
	s.logger.Info("document ingested", zap.String("url", pageURL), zap.Int("chunks", res.Chunks))
	return res, nil
}

// Similar returns the top chunks for question by fused keyword and vector rank.
func (s *Service) Similar(ctx context.Context, question string) ([]Hit, error) {
	ctx, span := tracer.Start(ctx, "docs.similar")
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}
	if s.index.Len() == 0 {
		return nil, ErrEmptyIndex
	}
	k := s.cfg.TopK
	bm, err := s.index.BM25(question, k*3)
	if err != nil {
		return nil, err
	}
	vecs, err := s.llm.CreateEmbedding(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed question: got %d vectors", len(vecs))
	}
	return FuseRRF(k, bm, s.index.Vector(vecs[0], k*3)), nil
}

// Ask answers question from retrieved context. Earlier turns of threadID are
// used to make the question standalone and are extended with this turn.
func (s *Service) Ask(ctx context.Context, threadID, question string) (Answer, error) {
	ctx, span := tracer.Start(ctx, "docs.ask")
	defer span.End()

	out := Answer{Question: question}
	history := s.History(threadID)

	standalone := question
	if len(history) > 0 {
		msg, err := s.llm.Complete(ctx, provider.ChatRequest{
			System:   rewritePrompt,
			Messages: withQuestion(history, question),
		})
		if err != nil {
			return out, fmt.Errorf("rewrite question: %w", err)
		}
		if q := strings.TrimSpace(msg.Content); q != "" {
			standalone = q
		}
	}

	hits, err := s.Similar(ctx, standalone)
	if err != nil {
		return out, err
	}
	out.Hits = hits

	reply, err := s.llm.Complete(ctx, provider.ChatRequest{
		System:   answerPrompt + contextBlock(hits),
		Messages: withQuestion(history, question),
	})
	if err != nil {
		return out, fmt.Errorf("answer question: %w", err)
	}
	out.Answer = strings.TrimSpace(reply.Content)

	if threadID != "" {
		s.mu.Lock()
		s.history[threadID] = append(s.history[threadID], models.UserMessage(question), models.AssistantMessage(out.Answer))
		s.mu.Unlock()
	}
	return out, nil
}

// History returns a copy of the question/answer turns of threadID.
func (s *Service) History(threadID string) []models.Message {
	if threadID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history[threadID]
	return append([]models.Message(nil), h...)
}

func withQuestion(history []models.Message, question string) []models.Message {
	out := make([]models.Message, 0, len(history)+1)
	out = append(out, history...)
	return append(out, models.UserMessage(question))
}

func contextBlock(hits []Hit) string {
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(h.Text)
	}
	return b.String()
}

// extractByClass returns the page title and the text of every element carrying class.
func extractByClass(raw, class string) (string, string, error) {
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	sel, err := cascadia.Parse(fmt.Sprintf("[class~=%q]", class))
	if err != nil {
		return "", "", fmt.Errorf("class selector %q: %w", class, err)
	}
	var title string
	if t := cascadia.Query(root, cascadia.MustCompile("title")); t != nil {
		title = strings.TrimSpace(textOf(t))
	}
	var parts []string
	for _, n := range cascadia.QueryAll(root, sel) {
		if t := strings.TrimSpace(textOf(n)); t != "" {
			parts = append(parts, t)
		}
	}
	return title, strings.Join(parts, "\n\n"), nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && (n.Data == "p" || n.Data == "br" || n.Data == "div" || n.Data == "li") {
			b.WriteString("\n")
		}
	}
	walk(n)
	return b.String()
}
