package pubstatic

import (
	"strings"
	"testing"
)

func TestReadingTime(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty", "", 1},
		{"short", "hello", 1},
		{"exactly one minute", strings.Repeat("a", 200), 1},
		{"just over", strings.Repeat("a", 201), 2},
		{"thousand", strings.Repeat("a", 1000), 5},
		{"multibyte counts runes", strings.Repeat("é", 400), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReadingTime(tt.body); got != tt.want {
				t.Errorf("ReadingTime() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		segs []string
		want string
	}{
		{"https://blog.example.com", nil, "https://blog.example.com"},
		{"https://blog.example.com/", nil, "https://blog.example.com"},
		{"https://blog.example.com", []string{"blog", "hello"}, "https://blog.example.com/blog/hello"},
		{"https://example.com/news/", []string{"blog", "hello"}, "https://example.com/news/blog/hello"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segs...); got != tt.want {
			t.Errorf("BuildURL(%q, %v) = %q, want %q", tt.base, tt.segs, got, tt.want)
		}
	}
}

func TestFilterListings(t *testing.T) {
	posts := []Listing{
		{Title: "SEO Basics", Keyword: "seo"},
		{Title: "Link Building", Summary: "Earning quality Backlinks"},
		{Title: "Launch Day"},
	}
	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"SEO Basics", "Link Building", "Launch Day"}},
		{"  ", []string{"SEO Basics", "Link Building", "Launch Day"}},
		{"SEO", []string{"SEO Basics"}},
		{"backlinks", []string{"Link Building"}},
		{"la", []string{"Launch Day"}},
		{"xyz", []string{}},
	}
	for _, tt := range tests {
		got := FilterListings(posts, tt.query)
		if got == nil {
			t.Errorf("FilterListings(%q) returned nil", tt.query)
			continue
		}
		titles := []string{}
		for _, l := range got {
			titles = append(titles, l.Title)
		}
		if strings.Join(titles, "|") != strings.Join(tt.want, "|") {
			t.Errorf("FilterListings(%q) = %v, want %v", tt.query, titles, tt.want)
		}
	}
}

func TestArticleJsonLDOmitsMissingFields(t *testing.T) {
	cfg := testConfig()
	ld := ArticleJsonLD(Post{Title: "T", Slug: "t", PublishedAt: day(2)}, cfg)
	for _, key := range []string{`"description"`, `"image"`} {
		if strings.Contains(ld, key) {
			t.Errorf("JSON-LD should not contain %s: %s", key, ld)
		}
	}
	if !strings.Contains(ld, `"datePublished":"2024-01-02T09:00:00Z"`) {
		t.Errorf("JSON-LD missing datePublished: %s", ld)
	}
	if !strings.Contains(ld, `"url":"https://blog.example.com/blog/t"`) {
		t.Errorf("JSON-LD missing url: %s", ld)
	}
}
