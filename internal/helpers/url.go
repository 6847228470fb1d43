package helpers

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

// Query parameters that only carry referral state. Dropping them lets the
// same page reached from different listings compare equal.
var trackingParams = []string{"utm_", "spm_id_from", "vd_source", "from_spmid", "gclid", "fbclid", "msclkid"}

func isTracking(key string) bool {
	key = strings.ToLower(key)
	for _, p := range trackingParams {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// ResolveLocator turns a link found on pageURL into an absolute locator.
// Protocol-relative links get https. An empty string means the link is unusable.
func ResolveLocator(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "", strings.HasPrefix(href, "#"), strings.HasPrefix(strings.ToLower(href), "javascript:"):
		return ""
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	}
	if base == nil || !base.IsAbs() {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// CanonicalURL normalises a document address before ingestion: https when
// the scheme is missing, lowercase host without default port, clean path,
// no fragment, no tracking parameters and sorted query keys.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	if loc := ResolveLocator(raw, nil); loc != "" {
		raw = loc
	} else if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Host == "" {
		return "", errors.New("url missing host")
	}

	host, port := strings.ToLower(u.Hostname()), u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	u.Host = host
	if port != "" {
		u.Host = host + ":" + port
	}

	p := path.Clean("/" + u.Path)
	if p != "/" && strings.HasSuffix(u.Path, "/") {
		p += "/"
	}
	u.Path, u.RawPath, u.Fragment = p, "", ""

	q := u.Query()
	for key := range q {
		if isTracking(key) {
			q.Del(key)
		}
	}
	// Encode sorts by key.
	u.RawQuery = q.Encode()
	return u.String(), nil
}
