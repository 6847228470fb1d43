package web_fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/hermes/tools/web_fetch/chromedp"
)

const DefaultTimeout = 15 * time.Second

// WebFetcher returns the raw HTML served for a URL.
type WebFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

// Options are shared by all fetchers.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Cookie    string
}

func NewWebFetcher(fetcherType FetcherType, opts Options) (WebFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	switch fetcherType {
	case HTTPFetcherType, "":
		return NewHTTPFetcher(opts), nil
	case ChromedpFetcherType:
		return &chromedp.Fetch{Timeout: opts.Timeout, UserAgent: opts.UserAgent, Cookie: opts.Cookie}, nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type %q", fetcherType)
	}
}
