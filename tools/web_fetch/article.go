package web_fetch

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/hermes/tools/web_fetch/models"
)

// ExtractArticle runs readability over html and returns the main text.
func ExtractArticle(html, pageURL string) (models.Result, error) {
	sum := sha1.Sum([]byte(html))
	res := models.Result{URL: pageURL, HTMLHash: hex.EncodeToString(sum[:])}

	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(pageURL))
	if err != nil {
		return res, fmt.Errorf("readability: %w", err)
	}
	res.Title = strings.TrimSpace(article.Title)
	res.Byline = strings.TrimSpace(article.Byline)
	res.SiteName = strings.TrimSpace(article.SiteName)
	res.Text = strings.TrimSpace(article.TextContent)
	return res, nil
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
