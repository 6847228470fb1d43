package web_fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPFetcherForwardsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "sid=1" || r.Header.Get("User-Agent") != "hermes-test" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f, err := NewWebFetcher(HTTPFetcherType, Options{UserAgent: "hermes-test", Cookie: "sid=1"})
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	html, err := f.FetchHTML(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(html, "ok") {
		t.Fatalf("unexpected body %q", html)
	}
}

func TestHTTPFetcherRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewHTTPFetcher(Options{}).FetchHTML(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestNewWebFetcherUnknownType(t *testing.T) {
	if _, err := NewWebFetcher("lynx", Options{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestExtractArticle(t *testing.T) {
	page := `<html><head><title>Release notes</title></head><body><article><h1>Release notes</h1>` +
		strings.Repeat("<p>The scheduler now honours a sixty second grace window for late jobs and drops anything later.</p>", 6) +
		`</article></body></html>`
	res, err := ExtractArticle(page, "https://example.com/notes")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(res.Text, "grace window") {
		t.Fatalf("text missing: %q", res.Text)
	}
	if res.HTMLHash == "" {
		t.Fatal("hash missing")
	}
}
