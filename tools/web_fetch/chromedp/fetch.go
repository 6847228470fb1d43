package chromedp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Fetch renders pages in headless Chrome so script-built result lists are present.
type Fetch struct {
	Timeout   time.Duration
	UserAgent string
	Cookie    string
}

func (f *Fetch) FetchHTML(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", errors.New("invalid url")
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	if f.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.UserAgent))
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	actions := []chromedp.Action{network.Enable()}
	if f.Cookie != "" {
		actions = append(actions, network.SetExtraHTTPHeaders(network.Headers{"Cookie": f.Cookie}))
	}
	var html string
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(bctx, actions...); err != nil {
		return "", err
	}
	return html, nil
}
