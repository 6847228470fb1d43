package helpers

import (
	"net/url"
	"testing"
)

func TestCanonicalURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"defaults https and cleans path", "Example.com/docs/../guide/intro", "https://example.com/guide/intro"},
		{"drops default port and tracking", "http://docs.example.com:80/page?id=7&utm_source=rss#top", "http://docs.example.com/page?id=7"},
		{"sorts query and keeps trailing slash", "https://example.com/path/?b=2&a=1&fbclid=x", "https://example.com/path/?a=1&b=2"},
		{"protocol relative", "//www.bilibili.com/video/BV1xx?spm_id_from=333.337&vd_source=abc", "https://www.bilibili.com/video/BV1xx"},
		{"collapses repeated slashes", "https://example.com//a//b///c", "https://example.com/a/b/c"},
		{"keeps custom port", "https://Example.com:8443/x", "https://example.com:8443/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalURL(tt.in)
			if err != nil {
				t.Fatalf("CanonicalURL(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("CanonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalURLErrors(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "   ", "https://"} {
		if _, err := CanonicalURL(in); err == nil {
			t.Fatalf("CanonicalURL(%q) expected error", in)
		}
	}
}

func TestResolveLocator(t *testing.T) {
	t.Parallel()
	base, _ := url.Parse("https://search.bilibili.com/all?keyword=sunny")
	tests := map[string]string{
		"//www.bilibili.com/video/BV1":  "https://www.bilibili.com/video/BV1",
		"https://a.example/x":           "https://a.example/x",
		"/video/BV2":                    "https://search.bilibili.com/video/BV2",
		"":                              "",
		"#":                             "",
		"javascript:void(0)":            "",
	}
	for in, want := range tests {
		if got := ResolveLocator(in, base); got != want {
			t.Fatalf("ResolveLocator(%q) = %q, want %q", in, got, want)
		}
	}
	if got := ResolveLocator("/video/BV3", nil); got != "" {
		t.Fatalf("relative link without base should be dropped, got %q", got)
	}
}
