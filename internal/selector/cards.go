package selector

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/mohammad-safakhou/hermes/internal/helpers"
)

// TitleNotFound replaces card titles that cannot be extracted.
const TitleNotFound = "title not found"

const (
	defaultCardSelector  = "div.bili-video-card__info--right"
	defaultTitleSelector = "h3.bili-video-card__info--tit"
)

type card struct {
	title string
	url   string
}

type cardParser struct {
	container cascadia.Selector
	anchor    cascadia.Selector
	title     cascadia.Selector
}

func newCardParser(containerSel, titleSel string) (cardParser, error) {
	if strings.TrimSpace(containerSel) == "" {
		containerSel = defaultCardSelector
	}
	if strings.TrimSpace(titleSel) == "" {
		titleSel = defaultTitleSelector
	}
	var p cardParser
	var err error
	if p.container, err = cascadia.Compile(containerSel); err != nil {
		return p, fmt.Errorf("compile card selector %q: %w", containerSel, err)
	}
	if p.title, err = cascadia.Compile(titleSel); err != nil {
		return p, fmt.Errorf("compile title selector %q: %w", titleSel, err)
	}
	p.anchor = cascadia.MustCompile("a[href]")
	return p, nil
}

// parse extracts cards from a result page. Cards without a link are skipped.
func (p cardParser) parse(doc, pageURL string) ([]card, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, _ := url.Parse(pageURL)

	var out []card
	for _, node := range p.container.MatchAll(root) {
		a := p.anchor.MatchFirst(node)
		if a == nil {
			continue
		}
		href := strings.TrimSpace(attr(a, "href"))
		locator := helpers.ResolveLocator(href, base)
		if locator == "" {
			continue
		}
		title := TitleNotFound
		if h := p.title.MatchFirst(a); h != nil {
			if t := NormalizeTitle(textOf(h)); t != "" {
				title = t
			}
		}
		out = append(out, card{title: title, url: locator})
	}
	return out, nil
}

// NormalizeTitle applies NFKC folding and collapses whitespace.
func NormalizeTitle(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
